package mteam

import (
	"net/http"

	"kyri56xcaesar/marathon-proj/internal/apierr"
	auth "kyri56xcaesar/marathon-proj/internal/authmw"
	"kyri56xcaesar/marathon-proj/internal/governance"
	"kyri56xcaesar/marathon-proj/internal/logger"

	"github.com/gin-gonic/gin"
)

func listTeamsHandler(c *gin.Context) {
	var q teamListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	teams, err := svc.ListTeams(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, q.toQuery())
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": teams})
}

func createTeamHandler(c *gin.Context) {
	var req governance.TeamInput
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Printf("failed to bind input: %v", err)
		apierr.BadRequest(c, err)
		return
	}

	team, err := svc.CreateTeam(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, req)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, team)
}

func getTeamHandler(c *gin.Context) {
	team, err := svc.GetTeam(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("teamId"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func applyHandler(c *gin.Context) {
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		apierr.BadRequest(c, err)
		return
	}

	app, err := svc.CreateApplication(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("teamId"), req.Message)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

func myTeamHandler(c *gin.Context) {
	team, err := svc.GetMyTeam(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func leaveTeamHandler(c *gin.Context) {
	res, err := svc.LeaveTeam(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// myTeamID resolves the caller's team; the /my-team routes act on it.
func myTeamID(c *gin.Context) (string, bool) {
	team, err := svc.GetMyTeam(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID)
	if err != nil {
		apierr.Write(c, err)
		return "", false
	}
	return team.ID, true
}

func listRequestsHandler(c *gin.Context) {
	teamID, ok := myTeamID(c)
	if !ok {
		return
	}

	status := governance.RequestStatus(c.Query("status"))
	reqs, err := svc.ListTeamRequests(c.Request.Context(), auth.ActorFrom(c), teamID, status)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": reqs})
}

func createRequestHandler(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		apierr.BadRequest(c, err)
		return
	}
	payload, err := governance.ParsePayload(body)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	teamID, ok := myTeamID(c)
	if !ok {
		return
	}

	req, err := svc.CreateTeamRequest(c.Request.Context(), auth.ActorFrom(c), teamID, payload)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

func voteHandler(c *gin.Context) {
	var body VoteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	req, err := svc.Vote(c.Request.Context(), auth.ActorFrom(c), c.Param("requestId"), body.Vote)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func decideHandler(c *gin.Context) {
	var body DecideRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.BadRequest(c, err)
		return
	}

	req, err := svc.Decide(c.Request.Context(), auth.ActorFrom(c), c.Param("requestId"), body.Decision)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func teamApplicationsHandler(c *gin.Context) {
	teamID, ok := myTeamID(c)
	if !ok {
		return
	}

	status := governance.ApplicationStatus(c.Query("status"))
	apps, err := svc.ListTeamApplications(c.Request.Context(), auth.ActorFrom(c), teamID, status)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": apps})
}

func myApplicationsHandler(c *gin.Context) {
	status := governance.ApplicationStatus(c.Query("status"))
	apps, err := svc.ListMyApplications(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, status)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": apps})
}

func cancelApplicationHandler(c *gin.Context) {
	app, err := svc.CancelApplication(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("applicationId"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func myInvitationsHandler(c *gin.Context) {
	status := governance.InvitationStatus(c.Query("status"))
	invs, err := svc.ListMyInvitations(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, status)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": invs})
}

func acceptInvitationHandler(c *gin.Context) {
	inv, err := svc.AcceptInvitation(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("invitationId"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

func declineInvitationHandler(c *gin.Context) {
	inv, err := svc.DeclineInvitation(c.Request.Context(), auth.ActorFrom(c), marathonOf(c).ID, c.Param("invitationId"))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}
