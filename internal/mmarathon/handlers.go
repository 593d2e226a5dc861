package mmarathon

import (
	"net/http"
	"strings"

	"kyri56xcaesar/marathon-proj/internal/apierr"
	auth "kyri56xcaesar/marathon-proj/internal/authmw"
	"kyri56xcaesar/marathon-proj/internal/governance"
	"kyri56xcaesar/marathon-proj/internal/logger"

	"github.com/gin-gonic/gin"
)

func createMarathonHandler(c *gin.Context) {
	var req governance.MarathonInput
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Printf("failed to bind input: %v", err)
		apierr.BadRequest(c, err)
		return
	}

	m, err := svc.CreateMarathon(c.Request.Context(), auth.ActorFrom(c), req)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

func listMarathonsHandler(c *gin.Context) {
	ms, err := svc.ListMarathons(c.Request.Context())
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": ms})
}

func getMarathonHandler(c *gin.Context) {
	c.JSON(http.StatusOK, marathonOf(c))
}

func deleteMarathonHandler(c *gin.Context) {
	if err := svc.DeleteMarathon(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID); err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func joinHandler(c *gin.Context) {
	p, err := svc.JoinMarathon(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

func leaveHandler(c *gin.Context) {
	if err := svc.LeaveMarathon(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID); err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func myStatusHandler(c *gin.Context) {
	st, err := svc.GetMyStatus(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, st)
}

func myProfileHandler(c *gin.Context) {
	p, err := svc.GetMyProfile(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func updateProfileHandler(c *gin.Context) {
	var req governance.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	p, err := svc.UpdateProfile(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, req)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func listParticipantsHandler(c *gin.Context) {
	var q participantListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	ps, err := svc.ListParticipants(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, q.toQuery())
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": ps})
}

func getParticipantHandler(c *gin.Context) {
	p, err := svc.GetParticipant(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("id"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// bindReason reads the optional moderation reason; the service decides
// whether it is required.
func bindReason(c *gin.Context) (string, bool) {
	var req ReasonRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return "", false
	}
	return req.Reason, true
}

func suspendParticipantHandler(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}

	res, err := svc.SuspendParticipant(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("id"), reason)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func banParticipantHandler(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}

	res, err := svc.BanParticipant(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("id"), reason)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func unsuspendParticipantHandler(c *gin.Context) {
	p, err := svc.UnsuspendParticipant(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("id"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func listOrganizersHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": marathonOf(c).Organizers})
}

func addOrganizerHandler(c *gin.Context) {
	var req OrganizerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	userID, err := directory.ResolveUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	m, err := svc.AddOrganizer(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, userID)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": m.Organizers})
}

func removeOrganizerHandler(c *gin.Context) {
	m, err := svc.RemoveOrganizer(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("userId"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": m.Organizers})
}

func suspendTeamHandler(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}

	team, err := svc.SuspendTeam(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("teamId"), reason)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func unsuspendTeamHandler(c *gin.Context) {
	team, err := svc.UnsuspendTeam(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("teamId"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func deleteTeamHandler(c *gin.Context) {
	if err := svc.DeleteTeam(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("teamId")); err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func executeRequestHandler(c *gin.Context) {
	req, err := svc.ExecuteRequest(c.Request.Context(), auth.ActorFrom(c), c.Param("requestId"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}
