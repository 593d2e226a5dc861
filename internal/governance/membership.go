package governance

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// addMember puts p on team and collapses every competing offer: the
// participant's other pending invitations are invalidated and their other
// pending applications cancelled. Callers mark the accepted application or
// invitation before calling, so it is not swept up here.
func (s *Service) addMember(ctx context.Context, tx Tx, team *Team, p *Participant) error {
	now := s.now()

	p.TeamID = team.ID
	p.UpdatedAt = now
	if err := tx.UpdateParticipant(ctx, p); err != nil {
		return fmt.Errorf("update participant: %w", err)
	}

	team.MemberCount++
	team.UpdatedAt = now
	if err := tx.UpdateTeam(ctx, team); err != nil {
		return fmt.Errorf("update team: %w", err)
	}

	invs, err := tx.ResolveInvitations(ctx, InvitationFilter{ParticipantID: p.ID}, InvitationInvalidated, now)
	if err != nil {
		return fmt.Errorf("invalidate invitations: %w", err)
	}
	apps, err := tx.ResolveApplications(ctx, ApplicationFilter{ParticipantID: p.ID}, ApplicationCancelled, now)
	if err != nil {
		return fmt.Errorf("cancel applications: %w", err)
	}

	s.log.Info("member added",
		zap.String("team", team.ID),
		zap.String("participant", p.ID),
		zap.Int("memberCount", team.MemberCount),
		zap.Int("invalidatedInvitations", invs),
		zap.Int("cancelledApplications", apps),
	)
	return nil
}

// removeMember takes p off team. A departing dictatorship leader demotes the
// team to democracy; the last member leaving dissolves it.
func (s *Service) removeMember(ctx context.Context, tx Tx, team *Team, p *Participant) (DepartureResult, error) {
	now := s.now()
	res := DepartureResult{TeamID: team.ID, RemovedFromTeam: true}
	wasLeader := team.IsLeader(p.ID)

	p.TeamID = ""
	p.UpdatedAt = now
	if err := tx.UpdateParticipant(ctx, p); err != nil {
		return res, fmt.Errorf("update participant: %w", err)
	}

	team.MemberCount--
	if team.MemberCount <= 0 {
		team.MemberCount = 0
		if err := s.dissolveTeam(ctx, tx, team, false); err != nil {
			return res, err
		}
		res.TeamDeleted = true
		return res, nil
	}

	if wasLeader {
		team.DecisionSystem = Democracy
		team.LeaderID = ""
		res.TeamBecameDemocracy = true
	}
	team.UpdatedAt = now
	if err := tx.UpdateTeam(ctx, team); err != nil {
		return res, fmt.Errorf("update team: %w", err)
	}

	s.log.Info("member removed",
		zap.String("team", team.ID),
		zap.String("participant", p.ID),
		zap.Int("memberCount", team.MemberCount),
		zap.Bool("becameDemocracy", res.TeamBecameDemocracy),
	)
	return res, nil
}

// dissolveTeam deletes the team with its positions and requests, rejects
// its pending applications and invalidates its pending invitations.
// Historical requests survive unless allRequests is set.
func (s *Service) dissolveTeam(ctx context.Context, tx Tx, team *Team, allRequests bool) error {
	now := s.now()

	if _, err := tx.DeletePositions(ctx, team.ID); err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}
	rf := RequestFilter{TeamID: team.ID, Status: RequestPending}
	if allRequests {
		rf.Status = ""
	}
	if _, err := tx.DeleteRequests(ctx, rf); err != nil {
		return fmt.Errorf("delete requests: %w", err)
	}
	if _, err := tx.ResolveApplications(ctx, ApplicationFilter{TeamID: team.ID}, ApplicationRejected, now); err != nil {
		return fmt.Errorf("reject applications: %w", err)
	}
	if _, err := tx.ResolveInvitations(ctx, InvitationFilter{TeamID: team.ID}, InvitationInvalidated, now); err != nil {
		return fmt.Errorf("invalidate invitations: %w", err)
	}
	if err := tx.DeleteTeam(ctx, team.ID); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}

	s.log.Info("team dissolved", zap.String("team", team.ID), zap.String("marathon", team.MarathonID))
	return nil
}
