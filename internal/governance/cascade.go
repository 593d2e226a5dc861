package governance

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// depart unwinds everything p holds in the marathon: their team seat, their
// own pending applications and the pending invitations addressed to them.
// It is shared by leaving a team, suspension and bans.
func (s *Service) depart(ctx context.Context, tx Tx, p *Participant) (DepartureResult, error) {
	var res DepartureResult

	if p.HasTeam() {
		team, err := tx.GetTeam(ctx, p.TeamID)
		switch {
		case IsNotFound(err):
			// dangling reference, nothing left to unwind on the team side
			s.log.Warn("participant points at a missing team",
				zap.String("participant", p.ID), zap.String("team", p.TeamID))
			p.TeamID = ""
			p.UpdatedAt = s.now()
			if err := tx.UpdateParticipant(ctx, p); err != nil {
				return res, fmt.Errorf("update participant: %w", err)
			}
		case err != nil:
			return res, fmt.Errorf("get team: %w", err)
		default:
			res, err = s.removeMember(ctx, tx, team, p)
			if err != nil {
				return res, err
			}
		}
	}

	if err := s.withdrawOffers(ctx, tx, p); err != nil {
		return res, err
	}
	return res, nil
}

// withdrawOffers cancels p's pending applications and invalidates the
// pending invitations addressed to p.
func (s *Service) withdrawOffers(ctx context.Context, tx Tx, p *Participant) error {
	now := s.now()
	apps, err := tx.ResolveApplications(ctx, ApplicationFilter{ParticipantID: p.ID}, ApplicationCancelled, now)
	if err != nil {
		return fmt.Errorf("cancel applications: %w", err)
	}
	invs, err := tx.ResolveInvitations(ctx, InvitationFilter{ParticipantID: p.ID}, InvitationInvalidated, now)
	if err != nil {
		return fmt.Errorf("invalidate invitations: %w", err)
	}
	if apps > 0 || invs > 0 {
		s.log.Info("pending offers withdrawn",
			zap.String("participant", p.ID),
			zap.Int("cancelledApplications", apps),
			zap.Int("invalidatedInvitations", invs),
		)
	}
	return nil
}
