package governance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// checkProposal rejects proposals that could never take effect, before
// anything is stored.
func (s *Service) checkProposal(ctx context.Context, tx Tx, team *Team, author *Participant, payload Payload) error {
	switch p := payload.(type) {
	case InvitePayload:
		target, err := tx.GetParticipant(ctx, p.ParticipantID)
		if err != nil || target.MarathonID != team.MarathonID {
			return describeMissing(orNotFound(err), "participant")
		}
		if target.HasTeam() {
			return Conflict("participant already has a team")
		}
		if !target.Active() {
			return Conflict("participant is suspended or banned")
		}
		pending, err := tx.ListInvitations(ctx, InvitationFilter{TeamID: team.ID, ParticipantID: target.ID, Status: InvitationPending})
		if err != nil {
			return fmt.Errorf("list invitations: %w", err)
		}
		if len(pending) > 0 {
			return Conflict("participant already has a pending invitation from this team")
		}

	case KickPayload:
		return checkTeammate(ctx, tx, team, author, p.MemberID)

	case TransferLeadPayload:
		if team.DecisionSystem != Dictatorship {
			return Conflict("leadership can only be transferred under dictatorship")
		}
		if p.MemberID == team.LeaderID {
			return Conflict("member is already the leader")
		}
		return checkTeammate(ctx, tx, team, author, p.MemberID)

	case ClosePositionPayload:
		pos, err := tx.GetPosition(ctx, p.PositionID)
		if err != nil || pos.TeamID != team.ID {
			return describeMissing(orNotFound(err), "position")
		}

	case AcceptApplicationPayload:
		if _, err := pendingApplication(ctx, tx, team, p.ApplicationID); err != nil {
			return err
		}
		m, err := tx.GetMarathon(ctx, team.MarathonID)
		if err != nil {
			return describeMissing(err, "marathon")
		}
		if team.MemberCount >= m.MaxTeamSize {
			return Conflict("team is full")
		}

	case RejectApplicationPayload:
		if _, err := pendingApplication(ctx, tx, team, p.ApplicationID); err != nil {
			return err
		}

	case ChangeDecisionSystemPayload:
		if p.DecisionSystem == team.DecisionSystem {
			if p.DecisionSystem == Democracy || p.LeaderID == team.LeaderID {
				return Conflict("team already uses %s", p.DecisionSystem)
			}
		}
		if p.DecisionSystem == Dictatorship {
			leader, err := tx.GetParticipant(ctx, p.LeaderID)
			if err != nil || leader.TeamID != team.ID {
				return describeMissing(orNotFound(err), "team member")
			}
		}
	}
	return nil
}

func checkTeammate(ctx context.Context, tx Tx, team *Team, author *Participant, memberID string) error {
	if memberID == author.ID {
		return Conflict("cannot target yourself")
	}
	member, err := tx.GetParticipant(ctx, memberID)
	if err != nil || member.TeamID != team.ID {
		return describeMissing(orNotFound(err), "team member")
	}
	return nil
}

func pendingApplication(ctx context.Context, tx Tx, team *Team, id string) (*Application, error) {
	app, err := tx.GetApplication(ctx, id)
	if err != nil || app.TeamID != team.ID {
		return nil, describeMissing(orNotFound(err), "application")
	}
	if app.Status != ApplicationPending {
		return nil, Conflict("application is already %s", app.Status)
	}
	return app, nil
}

// orNotFound turns a nil error from a lookup whose result failed a scope
// check into a not-found.
func orNotFound(err error) error {
	if err == nil {
		return ErrNotFound
	}
	return err
}

// resolve executes the effect of an approved request. A dependent entity
// that vanished or moved on since the proposal turns the effect into a
// logged no-op; the request itself stays approved. An applied effect is
// stamped with ExecutedAt and never applied again.
func (s *Service) resolve(ctx context.Context, tx Tx, team *Team, req *TeamRequest) error {
	if req.ExecutedAt != nil {
		s.logSkip(req, "effect already applied")
		return nil
	}

	var (
		skip string
		err  error
	)
	switch p := req.Payload.(type) {
	case AcceptApplicationPayload:
		skip, err = s.acceptApplication(ctx, tx, team, p.ApplicationID)
	case RejectApplicationPayload:
		skip, err = s.rejectApplication(ctx, tx, team, p.ApplicationID)
	case OpenPositionPayload:
		skip, err = s.openPosition(ctx, tx, team, req, p)
	case ClosePositionPayload:
		err = tx.DeletePosition(ctx, p.PositionID)
		if IsNotFound(err) {
			skip, err = "position no longer exists", nil
		}
	case InvitePayload:
		skip, err = s.invite(ctx, tx, team, req, p)
	case KickPayload:
		skip, err = s.kick(ctx, tx, team, p.MemberID)
	case TransferLeadPayload:
		skip, err = s.transferLead(ctx, tx, team, p.MemberID)
	case ChangeDecisionSystemPayload:
		skip, err = s.changeDecisionSystem(ctx, tx, team, p)
	case UpdateSettingsPayload:
		p.Changes.apply(team)
		team.UpdatedAt = s.now()
		err = tx.UpdateTeam(ctx, team)
	default:
		return fmt.Errorf("no resolution for request type %q", req.Type)
	}
	if err != nil {
		return fmt.Errorf("resolve %s request %s: %w", req.Type, req.ID, err)
	}
	if skip != "" {
		s.logSkip(req, skip)
		return nil
	}

	now := s.now()
	req.ExecutedAt = &now
	if err := tx.UpdateRequest(ctx, req); err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return nil
}

func (s *Service) logSkip(req *TeamRequest, reason string) {
	s.log.Info("request effect skipped",
		zap.String("request", req.ID),
		zap.String("type", string(req.Type)),
		zap.String("reason", reason),
	)
}

func (s *Service) acceptApplication(ctx context.Context, tx Tx, team *Team, id string) (string, error) {
	app, err := tx.GetApplication(ctx, id)
	if IsNotFound(err) {
		return "application no longer exists", nil
	}
	if err != nil {
		return "", err
	}
	if app.TeamID != team.ID || app.Status != ApplicationPending {
		return "application is no longer pending", nil
	}
	applicant, err := tx.GetParticipant(ctx, app.ParticipantID)
	if IsNotFound(err) {
		return "applicant left the marathon", nil
	}
	if err != nil {
		return "", err
	}
	if applicant.HasTeam() || !applicant.Active() {
		return "applicant is no longer available", nil
	}
	m, err := tx.GetMarathon(ctx, team.MarathonID)
	if err != nil {
		return "", err
	}
	if team.MemberCount >= m.MaxTeamSize {
		return "team is full", nil
	}

	now := s.now()
	app.Status = ApplicationAccepted
	app.ResolvedAt = &now
	if err := tx.UpdateApplication(ctx, app); err != nil {
		return "", err
	}
	return "", s.addMember(ctx, tx, team, applicant)
}

func (s *Service) rejectApplication(ctx context.Context, tx Tx, team *Team, id string) (string, error) {
	app, err := tx.GetApplication(ctx, id)
	if IsNotFound(err) {
		return "application no longer exists", nil
	}
	if err != nil {
		return "", err
	}
	if app.TeamID != team.ID || app.Status != ApplicationPending {
		return "application is no longer pending", nil
	}
	now := s.now()
	app.Status = ApplicationRejected
	app.ResolvedAt = &now
	return "", tx.UpdateApplication(ctx, app)
}

// openPosition keys the position by the request id, so the effect of one
// request opens at most one position.
func (s *Service) openPosition(ctx context.Context, tx Tx, team *Team, req *TeamRequest, p OpenPositionPayload) (string, error) {
	_, err := tx.GetPosition(ctx, req.ID)
	if err == nil {
		return "position already opened", nil
	}
	if !IsNotFound(err) {
		return "", err
	}
	return "", tx.InsertPosition(ctx, &OpenPosition{
		ID:          req.ID,
		TeamID:      team.ID,
		MarathonID:  team.MarathonID,
		Role:        strings.TrimSpace(p.Role),
		Description: p.Description,
		CreatedAt:   s.now(),
	})
}

func (s *Service) invite(ctx context.Context, tx Tx, team *Team, req *TeamRequest, p InvitePayload) (string, error) {
	target, err := tx.GetParticipant(ctx, p.ParticipantID)
	if IsNotFound(err) {
		return "participant left the marathon", nil
	}
	if err != nil {
		return "", err
	}
	if target.HasTeam() || !target.Active() {
		return "participant is no longer available", nil
	}
	sent, err := tx.ListInvitations(ctx, InvitationFilter{TeamID: team.ID, ParticipantID: target.ID})
	if err != nil {
		return "", err
	}
	for _, inv := range sent {
		if inv.RequestID == req.ID {
			return "invitation for this request already sent", nil
		}
		if inv.Status == InvitationPending {
			return "participant already holds an invitation from this team", nil
		}
	}
	return "", tx.InsertInvitation(ctx, &Invitation{
		ID:            s.newID(),
		MarathonID:    team.MarathonID,
		TeamID:        team.ID,
		ParticipantID: target.ID,
		RequestID:     req.ID,
		Message:       p.Message,
		Status:        InvitationPending,
		CreatedAt:     s.now(),
	})
}

func (s *Service) kick(ctx context.Context, tx Tx, team *Team, memberID string) (string, error) {
	member, err := tx.GetParticipant(ctx, memberID)
	if IsNotFound(err) {
		return "member left the marathon", nil
	}
	if err != nil {
		return "", err
	}
	if member.TeamID != team.ID {
		return "member already left the team", nil
	}
	_, err = s.removeMember(ctx, tx, team, member)
	return "", err
}

func (s *Service) transferLead(ctx context.Context, tx Tx, team *Team, memberID string) (string, error) {
	if team.DecisionSystem != Dictatorship {
		return "team is no longer a dictatorship", nil
	}
	member, err := tx.GetParticipant(ctx, memberID)
	if IsNotFound(err) {
		return "member left the marathon", nil
	}
	if err != nil {
		return "", err
	}
	if member.TeamID != team.ID {
		return "member already left the team", nil
	}
	team.LeaderID = member.ID
	team.UpdatedAt = s.now()
	return "", tx.UpdateTeam(ctx, team)
}

func (s *Service) changeDecisionSystem(ctx context.Context, tx Tx, team *Team, p ChangeDecisionSystemPayload) (string, error) {
	switch p.DecisionSystem {
	case Democracy:
		team.DecisionSystem = Democracy
		team.LeaderID = ""
	case Dictatorship:
		leader, err := tx.GetParticipant(ctx, p.LeaderID)
		if IsNotFound(err) {
			return "leader left the marathon", nil
		}
		if err != nil {
			return "", err
		}
		if leader.TeamID != team.ID {
			return "leader already left the team", nil
		}
		team.DecisionSystem = Dictatorship
		team.LeaderID = leader.ID
	}
	team.UpdatedAt = s.now()
	return "", tx.UpdateTeam(ctx, team)
}

// ExecuteRequest runs the effect of an approved request whose effect was
// skipped, for instance because the applicant was busy at the time. An
// effect that was already applied is left untouched. Organizers only.
func (s *Service) ExecuteRequest(ctx context.Context, actor Actor, requestID string) (*TeamRequest, error) {
	var out *TeamRequest
	err := s.store.InTx(ctx, func(tx Tx) error {
		req, team, err := loadRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		m, err := tx.GetMarathon(ctx, team.MarathonID)
		if err != nil {
			return describeMissing(err, "marathon")
		}
		if !canModerate(m, actor) {
			return Forbidden("only organizers can re-run requests")
		}
		if req.Status != RequestApproved {
			return Conflict("request is %s, not approved", req.Status)
		}
		if err := s.resolve(ctx, tx, team, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
