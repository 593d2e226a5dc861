package governance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

func checkReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", Invalid("reason is required")
	}
	return reason, checkLen("reason", reason, maxMessageLen)
}

// moderatedParticipant loads a participant and checks the actor may act on
// them: organizers moderate participants, only the creator moderates other
// organizers, and nobody moderates the creator.
func moderatedParticipant(ctx context.Context, tx Tx, marathonID, participantID string, actor Actor) (*Marathon, *Participant, error) {
	m, err := tx.GetMarathon(ctx, marathonID)
	if err != nil {
		return nil, nil, describeMissing(err, "marathon")
	}
	if !canModerate(m, actor) {
		return nil, nil, Forbidden("only organizers can moderate participants")
	}
	p, err := tx.GetParticipant(ctx, participantID)
	if err != nil || p.MarathonID != m.ID {
		return nil, nil, describeMissing(orNotFound(err), "participant")
	}
	if p.UserID == m.CreatorID {
		return nil, nil, Forbidden("the marathon creator cannot be moderated")
	}
	if m.IsOrganizer(p.UserID) && !isCreator(m, actor) {
		return nil, nil, Forbidden("only the creator can moderate organizers")
	}
	return m, p, nil
}

// SuspendParticipant removes the participant from their team and withdraws
// their pending offers. The row stays, flagged, until unsuspended.
func (s *Service) SuspendParticipant(ctx context.Context, actor Actor, marathonID, participantID, reason string) (DepartureResult, error) {
	reason, err := checkReason(reason)
	if err != nil {
		return DepartureResult{}, err
	}

	var out DepartureResult
	err = s.store.InTx(ctx, func(tx Tx) error {
		_, p, err := moderatedParticipant(ctx, tx, marathonID, participantID, actor)
		if err != nil {
			return err
		}
		if p.IsSuspended {
			return Conflict("participant is already suspended")
		}
		out, err = s.depart(ctx, tx, p)
		if err != nil {
			return err
		}
		p.IsSuspended = true
		p.SuspendReason = reason
		p.UpdatedAt = s.now()
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return fmt.Errorf("update participant: %w", err)
		}
		s.log.Info("participant suspended",
			zap.String("participant", p.ID),
			zap.String("by", actor.UserID),
			zap.Bool("removedFromTeam", out.RemovedFromTeam),
		)
		return nil
	})
	if err != nil {
		return DepartureResult{}, err
	}
	return out, nil
}

// BanParticipant is a suspension that cannot be lifted; the user can no
// longer join the marathon.
func (s *Service) BanParticipant(ctx context.Context, actor Actor, marathonID, participantID, reason string) (DepartureResult, error) {
	reason, err := checkReason(reason)
	if err != nil {
		return DepartureResult{}, err
	}

	var out DepartureResult
	err = s.store.InTx(ctx, func(tx Tx) error {
		_, p, err := moderatedParticipant(ctx, tx, marathonID, participantID, actor)
		if err != nil {
			return err
		}
		if p.IsBanned {
			return Conflict("participant is already banned")
		}
		out, err = s.depart(ctx, tx, p)
		if err != nil {
			return err
		}
		p.IsBanned = true
		p.BanReason = reason
		p.UpdatedAt = s.now()
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return fmt.Errorf("update participant: %w", err)
		}
		s.log.Info("participant banned",
			zap.String("participant", p.ID),
			zap.String("by", actor.UserID),
			zap.Bool("removedFromTeam", out.RemovedFromTeam),
		)
		return nil
	})
	if err != nil {
		return DepartureResult{}, err
	}
	return out, nil
}

// UnsuspendParticipant lifts a suspension. Team membership is not restored.
func (s *Service) UnsuspendParticipant(ctx context.Context, actor Actor, marathonID, participantID string) (*Participant, error) {
	var out *Participant
	err := s.store.InTx(ctx, func(tx Tx) error {
		_, p, err := moderatedParticipant(ctx, tx, marathonID, participantID, actor)
		if err != nil {
			return err
		}
		if !p.IsSuspended {
			return Conflict("participant is not suspended")
		}
		p.IsSuspended = false
		p.SuspendReason = ""
		p.UpdatedAt = s.now()
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return fmt.Errorf("update participant: %w", err)
		}
		s.log.Info("participant unsuspended", zap.String("participant", p.ID), zap.String("by", actor.UserID))
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func moderatedTeam(ctx context.Context, tx Tx, marathonID, teamID string, actor Actor) (*Team, error) {
	m, err := tx.GetMarathon(ctx, marathonID)
	if err != nil {
		return nil, describeMissing(err, "marathon")
	}
	if !canModerate(m, actor) {
		return nil, Forbidden("only organizers can moderate teams")
	}
	team, err := tx.GetTeam(ctx, teamID)
	if err != nil || team.MarathonID != m.ID {
		return nil, describeMissing(orNotFound(err), "team")
	}
	return team, nil
}

// SuspendTeam freezes a team: its pending applications are rejected, its
// pending invitations invalidated and its pending requests rejected. The
// roster is kept.
func (s *Service) SuspendTeam(ctx context.Context, actor Actor, marathonID, teamID, reason string) (*Team, error) {
	reason, err := checkReason(reason)
	if err != nil {
		return nil, err
	}

	var out *Team
	err = s.store.InTx(ctx, func(tx Tx) error {
		team, err := moderatedTeam(ctx, tx, marathonID, teamID, actor)
		if err != nil {
			return err
		}
		if team.IsSuspended {
			return Conflict("team is already suspended")
		}
		now := s.now()
		if _, err := tx.ResolveApplications(ctx, ApplicationFilter{TeamID: team.ID}, ApplicationRejected, now); err != nil {
			return fmt.Errorf("reject applications: %w", err)
		}
		if _, err := tx.ResolveInvitations(ctx, InvitationFilter{TeamID: team.ID}, InvitationInvalidated, now); err != nil {
			return fmt.Errorf("invalidate invitations: %w", err)
		}
		if _, err := tx.ResolveRequests(ctx, team.ID, RequestRejected, now); err != nil {
			return fmt.Errorf("reject requests: %w", err)
		}
		team.IsSuspended = true
		team.SuspendReason = reason
		team.UpdatedAt = now
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return fmt.Errorf("update team: %w", err)
		}
		s.log.Info("team suspended", zap.String("team", team.ID), zap.String("by", actor.UserID))
		out = team
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) UnsuspendTeam(ctx context.Context, actor Actor, marathonID, teamID string) (*Team, error) {
	var out *Team
	err := s.store.InTx(ctx, func(tx Tx) error {
		team, err := moderatedTeam(ctx, tx, marathonID, teamID, actor)
		if err != nil {
			return err
		}
		if !team.IsSuspended {
			return Conflict("team is not suspended")
		}
		team.IsSuspended = false
		team.SuspendReason = ""
		team.UpdatedAt = s.now()
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return fmt.Errorf("update team: %w", err)
		}
		s.log.Info("team unsuspended", zap.String("team", team.ID), zap.String("by", actor.UserID))
		out = team
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTeam disbands a team: every member becomes team-less and the team
// goes away with its positions and all of its requests.
func (s *Service) DeleteTeam(ctx context.Context, actor Actor, marathonID, teamID string) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		team, err := moderatedTeam(ctx, tx, marathonID, teamID, actor)
		if err != nil {
			return err
		}
		members, err := tx.ListParticipants(ctx, ParticipantFilter{TeamID: team.ID})
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		now := s.now()
		for _, p := range members {
			p.TeamID = ""
			p.UpdatedAt = now
			if err := tx.UpdateParticipant(ctx, p); err != nil {
				return fmt.Errorf("update participant: %w", err)
			}
		}
		if err := s.dissolveTeam(ctx, tx, team, true); err != nil {
			return err
		}
		s.log.Info("team deleted", zap.String("team", team.ID), zap.String("by", actor.UserID), zap.Int("members", len(members)))
		return nil
	})
}
