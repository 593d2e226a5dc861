package governance

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// AcceptInvitation puts the actor on the inviting team, provided it still
// exists, is not suspended and has room under the marathon's size bound.
func (s *Service) AcceptInvitation(ctx context.Context, actor Actor, marathonID, invitationID string) (*Invitation, error) {
	var (
		out     *Invitation
		invalid *Error
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		me, inv, err := s.addressedInvitation(ctx, tx, marathonID, invitationID, actor)
		if err != nil {
			return err
		}
		if me.HasTeam() {
			return Conflict("you already have a team")
		}
		if !me.Active() {
			return Conflict("suspended or banned participants cannot join teams")
		}

		now := s.now()
		team, err := tx.GetTeam(ctx, inv.TeamID)
		if IsNotFound(err) {
			// commit the invalidation, then report the conflict
			inv.Status = InvitationInvalidated
			inv.ResolvedAt = &now
			if err := tx.UpdateInvitation(ctx, inv); err != nil {
				return fmt.Errorf("update invitation: %w", err)
			}
			invalid = Conflict("the team no longer exists")
			return nil
		}
		if err != nil {
			return fmt.Errorf("get team: %w", err)
		}
		if team.IsSuspended {
			return Conflict("team is suspended")
		}
		m, err := tx.GetMarathon(ctx, team.MarathonID)
		if err != nil {
			return describeMissing(err, "marathon")
		}
		if team.MemberCount >= m.MaxTeamSize {
			return Conflict("team is full")
		}

		inv.Status = InvitationAccepted
		inv.ResolvedAt = &now
		if err := tx.UpdateInvitation(ctx, inv); err != nil {
			return fmt.Errorf("update invitation: %w", err)
		}
		if err := s.addMember(ctx, tx, team, me); err != nil {
			return err
		}
		s.log.Info("invitation accepted", zap.String("invitation", inv.ID), zap.String("team", team.ID))
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	if invalid != nil {
		return nil, invalid
	}
	return out, nil
}

// DeclineInvitation closes the invitation with no other effect.
func (s *Service) DeclineInvitation(ctx context.Context, actor Actor, marathonID, invitationID string) (*Invitation, error) {
	var out *Invitation
	err := s.store.InTx(ctx, func(tx Tx) error {
		_, inv, err := s.addressedInvitation(ctx, tx, marathonID, invitationID, actor)
		if err != nil {
			return err
		}
		now := s.now()
		inv.Status = InvitationDeclined
		inv.ResolvedAt = &now
		if err := tx.UpdateInvitation(ctx, inv); err != nil {
			return fmt.Errorf("update invitation: %w", err)
		}
		s.log.Info("invitation declined", zap.String("invitation", inv.ID))
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// addressedInvitation loads a pending invitation addressed to the actor.
func (s *Service) addressedInvitation(ctx context.Context, tx Tx, marathonID, id string, actor Actor) (*Participant, *Invitation, error) {
	me, err := participantIn(ctx, tx, marathonID, actor)
	if err != nil {
		return nil, nil, err
	}
	inv, err := tx.GetInvitation(ctx, id)
	if err != nil || inv.ParticipantID != me.ID {
		return nil, nil, describeMissing(orNotFound(err), "invitation")
	}
	if inv.Status != InvitationPending {
		return nil, nil, Conflict("invitation is already %s", inv.Status)
	}
	return me, inv, nil
}

type InvitationView struct {
	*Invitation
	TeamName string `json:"teamName,omitempty"`
}

// ListMyInvitations lists invitations addressed to the actor.
func (s *Service) ListMyInvitations(ctx context.Context, actor Actor, marathonID string, status InvitationStatus) ([]InvitationView, error) {
	var out []InvitationView
	err := s.store.View(ctx, func(tx Tx) error {
		me, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		invs, err := tx.ListInvitations(ctx, InvitationFilter{ParticipantID: me.ID, Status: status})
		if err != nil {
			return fmt.Errorf("list invitations: %w", err)
		}
		out = make([]InvitationView, 0, len(invs))
		for _, inv := range invs {
			v := InvitationView{Invitation: inv}
			if team, err := tx.GetTeam(ctx, inv.TeamID); err == nil {
				v.TeamName = team.Name
			} else if !IsNotFound(err) {
				return fmt.Errorf("get team: %w", err)
			}
			out = append(out, v)
		}
		slices.Reverse(out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
