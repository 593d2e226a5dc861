package governance

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"kyri56xcaesar/marathon-proj/internal/utils"

	"go.uber.org/zap"
)

const (
	maxSlugLen     = 16
	maxNicknameLen = 16
	minTeamBound   = 1
	maxTeamBound   = 50
)

type MarathonInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	MinTeamSize int    `json:"minTeamSize"`
	MaxTeamSize int    `json:"maxTeamSize"`
}

func (in *MarathonInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if err := checkName(in.Name); err != nil {
		return err
	}
	if err := checkHandle("slug", in.Slug, maxSlugLen); err != nil {
		return err
	}
	in.Topic = strings.TrimSpace(in.Topic)
	if err := checkLen("topic", in.Topic, maxNameLen); err != nil {
		return err
	}
	if err := checkLen("description", in.Description, maxDescriptionLen); err != nil {
		return err
	}
	if in.MinTeamSize < minTeamBound || in.MinTeamSize > maxTeamBound ||
		in.MaxTeamSize < minTeamBound || in.MaxTeamSize > maxTeamBound {
		return Invalid("team size bounds must be between %d and %d", minTeamBound, maxTeamBound)
	}
	if in.MinTeamSize > in.MaxTeamSize {
		return Invalid("minTeamSize cannot exceed maxTeamSize")
	}
	return nil
}

// checkHandle validates slugs and nicknames: latin letters, digits, dash
// and underscore.
func checkHandle(field, v string, max int) error {
	if v == "" {
		return Invalid("%s is required", field)
	}
	if len(v) > max {
		return Invalid("%s exceeds %d characters", field, max)
	}
	if !utils.IsAlphanumericPlus(v, "_-") {
		return Invalid("%s may only contain latin letters, digits, '-' and '_'", field)
	}
	return nil
}

func (s *Service) CreateMarathon(ctx context.Context, actor Actor, in MarathonInput) (*Marathon, error) {
	if actor.UserID == "" {
		return nil, Forbidden("authentication required")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var out *Marathon
	err := s.store.InTx(ctx, func(tx Tx) error {
		_, err := tx.GetMarathonBySlug(ctx, in.Slug)
		if err == nil {
			return Conflict("slug %q is already taken", in.Slug)
		}
		if !IsNotFound(err) {
			return fmt.Errorf("get marathon: %w", err)
		}

		now := s.now()
		m := &Marathon{
			ID:          s.newID(),
			Name:        in.Name,
			Slug:        in.Slug,
			Topic:       in.Topic,
			Description: in.Description,
			MinTeamSize: in.MinTeamSize,
			MaxTeamSize: in.MaxTeamSize,
			CreatorID:   actor.UserID,
			Organizers:  []string{actor.UserID},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertMarathon(ctx, m); err != nil {
			return fmt.Errorf("insert marathon: %w", err)
		}
		s.log.Info("marathon created", zap.String("marathon", m.ID), zap.String("slug", m.Slug), zap.String("creator", m.CreatorID))
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMarathon looks a marathon up by its slug, case-insensitively.
func (s *Service) GetMarathon(ctx context.Context, slug string) (*Marathon, error) {
	var out *Marathon
	err := s.store.View(ctx, func(tx Tx) error {
		m, err := tx.GetMarathonBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
		if err != nil {
			return describeMissing(err, "marathon")
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListMarathons lists every marathon, newest first.
func (s *Service) ListMarathons(ctx context.Context) ([]*Marathon, error) {
	var out []*Marathon
	err := s.store.View(ctx, func(tx Tx) error {
		all, err := tx.ListMarathons(ctx)
		if err != nil {
			return fmt.Errorf("list marathons: %w", err)
		}
		slices.Reverse(all)
		out = all
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type MarathonStatus struct {
	IsParticipant bool   `json:"isParticipant"`
	IsOrganizer   bool   `json:"isOrganizer"`
	IsCreator     bool   `json:"isCreator"`
	IsBanned      bool   `json:"isBanned"`
	IsSuspended   bool   `json:"isSuspended"`
	SuspendReason string `json:"suspendReason,omitempty"`
	HasTeam       bool   `json:"hasTeam"`
	TeamID        string `json:"teamId,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
}

// GetMyStatus tells the actor how they stand in the marathon. Unlike the
// other reads it does not require a participant row.
func (s *Service) GetMyStatus(ctx context.Context, actor Actor, marathonID string) (MarathonStatus, error) {
	if actor.UserID == "" {
		return MarathonStatus{}, Forbidden("authentication required")
	}
	var out MarathonStatus
	err := s.store.View(ctx, func(tx Tx) error {
		m, err := tx.GetMarathon(ctx, marathonID)
		if err != nil {
			return describeMissing(err, "marathon")
		}
		out = MarathonStatus{
			IsOrganizer: canModerate(m, actor),
			IsCreator:   isCreator(m, actor),
		}
		p, err := tx.GetParticipantByUser(ctx, m.ID, actor.UserID)
		if IsNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get participant: %w", err)
		}
		out.IsParticipant = true
		out.ParticipantID = p.ID
		out.IsBanned = p.IsBanned
		out.IsSuspended = p.IsSuspended
		out.SuspendReason = p.SuspendReason
		out.HasTeam = p.HasTeam()
		out.TeamID = p.TeamID
		return nil
	})
	if err != nil {
		return MarathonStatus{}, err
	}
	return out, nil
}

// DeleteMarathon removes the marathon with everything scoped to it. Only
// its creator may do so.
func (s *Service) DeleteMarathon(ctx context.Context, actor Actor, marathonID string) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.GetMarathon(ctx, marathonID)
		if err != nil {
			return describeMissing(err, "marathon")
		}
		if !isCreator(m, actor) {
			return Forbidden("only the creator can delete the marathon")
		}
		if err := tx.DeleteMarathon(ctx, m.ID); err != nil {
			return fmt.Errorf("delete marathon: %w", err)
		}
		s.log.Info("marathon deleted", zap.String("marathon", m.ID), zap.String("slug", m.Slug))
		return nil
	})
}

func (s *Service) AddOrganizer(ctx context.Context, actor Actor, marathonID, userID string) (*Marathon, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, Invalid("userId is required")
	}
	return s.updateOrganizers(ctx, actor, marathonID, func(m *Marathon) error {
		if m.IsOrganizer(userID) {
			return Conflict("user is already an organizer")
		}
		m.Organizers = append(m.Organizers, userID)
		return nil
	})
}

func (s *Service) RemoveOrganizer(ctx context.Context, actor Actor, marathonID, userID string) (*Marathon, error) {
	return s.updateOrganizers(ctx, actor, marathonID, func(m *Marathon) error {
		if userID == m.CreatorID {
			return Forbidden("the creator cannot be removed")
		}
		i := slices.Index(m.Organizers, userID)
		if i < 0 {
			return NotFound("user is not an organizer")
		}
		m.Organizers = slices.Delete(m.Organizers, i, i+1)
		return nil
	})
}

func (s *Service) updateOrganizers(ctx context.Context, actor Actor, marathonID string, change func(m *Marathon) error) (*Marathon, error) {
	var out *Marathon
	err := s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.GetMarathon(ctx, marathonID)
		if err != nil {
			return describeMissing(err, "marathon")
		}
		if !canModerate(m, actor) {
			return Forbidden("only organizers can manage organizers")
		}
		if err := change(m); err != nil {
			return err
		}
		m.UpdatedAt = s.now()
		if err := tx.UpdateMarathon(ctx, m); err != nil {
			return fmt.Errorf("update marathon: %w", err)
		}
		s.log.Info("organizers updated", zap.String("marathon", m.ID), zap.Strings("organizers", m.Organizers))
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// JoinMarathon creates the actor's participant row. Banned users cannot
// come back.
func (s *Service) JoinMarathon(ctx context.Context, actor Actor, marathonID string) (*Participant, error) {
	if actor.UserID == "" {
		return nil, Forbidden("authentication required")
	}
	var out *Participant
	err := s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.GetMarathon(ctx, marathonID)
		if err != nil {
			return describeMissing(err, "marathon")
		}
		existing, err := tx.GetParticipantByUser(ctx, m.ID, actor.UserID)
		switch {
		case err == nil && existing.IsBanned:
			return Forbidden("you are banned from this marathon")
		case err == nil:
			return Conflict("already a participant of this marathon")
		case !IsNotFound(err):
			return fmt.Errorf("get participant: %w", err)
		}

		p := s.newParticipant(m.ID, actor.UserID)
		if err := tx.InsertParticipant(ctx, p); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		s.log.Info("participant joined", zap.String("marathon", m.ID), zap.String("participant", p.ID))
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) newParticipant(marathonID, userID string) *Participant {
	now := s.now()
	return &Participant{
		ID:           s.newID(),
		MarathonID:   marathonID,
		UserID:       userID,
		Roles:        []string{},
		Technologies: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LeaveMarathon deletes the actor's participant row. Members have to leave
// their team first.
func (s *Service) LeaveMarathon(ctx context.Context, actor Actor, marathonID string) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		p, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		if p.HasTeam() {
			return Conflict("leave your team before leaving the marathon")
		}
		if p.IsBanned {
			return Forbidden("banned participants cannot leave")
		}
		if err := s.withdrawOffers(ctx, tx, p); err != nil {
			return err
		}
		if err := tx.DeleteParticipant(ctx, p.ID); err != nil {
			return fmt.Errorf("delete participant: %w", err)
		}
		s.log.Info("participant left", zap.String("marathon", marathonID), zap.String("participant", p.ID))
		return nil
	})
}

type ProfileInput struct {
	Name         *string  `json:"name"`
	Nickname     *string  `json:"nickname"`
	Roles        []string `json:"roles"`
	Technologies []string `json:"technologies"`
	Description  *string  `json:"description"`
}

func (in *ProfileInput) normalize() error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := checkName(name); err != nil {
			return err
		}
		in.Name = &name
	}
	if in.Nickname != nil {
		nick := strings.ToLower(strings.TrimSpace(*in.Nickname))
		if err := checkHandle("nickname", nick, maxNicknameLen); err != nil {
			return err
		}
		in.Nickname = &nick
	}
	if in.Description != nil {
		if err := checkLen("description", *in.Description, maxDescriptionLen); err != nil {
			return err
		}
	}
	in.Roles = compactTags(in.Roles)
	in.Technologies = compactTags(in.Technologies)
	return nil
}

func compactTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	trimmed := utils.Filter(utils.Map(tags, strings.TrimSpace), func(t string) bool { return t != "" })
	out := make([]string, 0, len(trimmed))
	for _, t := range trimmed {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// GetMyProfile returns the actor's participant row.
func (s *Service) GetMyProfile(ctx context.Context, actor Actor, marathonID string) (*Participant, error) {
	var out *Participant
	err := s.store.View(ctx, func(tx Tx) error {
		p, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfile edits the actor's profile. Organizers that never joined get
// a participant row on their first edit.
func (s *Service) UpdateProfile(ctx context.Context, actor Actor, marathonID string, in ProfileInput) (*Participant, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var out *Participant
	err := s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.GetMarathon(ctx, marathonID)
		if err != nil {
			return describeMissing(err, "marathon")
		}
		p, err := participantIn(ctx, tx, m.ID, actor)
		created := false
		switch {
		case IsNotFound(err) && canModerate(m, actor) && actor.UserID != "":
			p, created = s.newParticipant(m.ID, actor.UserID), true
		case err != nil:
			return err
		}

		if in.Nickname != nil && *in.Nickname != p.Nickname {
			other, err := tx.GetParticipantByNickname(ctx, m.ID, *in.Nickname)
			if err == nil && other.ID != p.ID {
				return Conflict("nickname %q is already taken", *in.Nickname)
			}
			if err != nil && !IsNotFound(err) {
				return fmt.Errorf("get participant: %w", err)
			}
			p.Nickname = *in.Nickname
		}
		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.Roles != nil {
			p.Roles = in.Roles
		}
		if in.Technologies != nil {
			p.Technologies = in.Technologies
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		p.UpdatedAt = s.now()

		if created {
			err = tx.InsertParticipant(ctx, p)
		} else {
			err = tx.UpdateParticipant(ctx, p)
		}
		if err != nil {
			return fmt.Errorf("save participant: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type ParticipantQuery struct {
	// Available keeps participants without a team.
	Available    bool
	Roles        []string
	Technologies []string
}

func (q ParticipantQuery) match(p *Participant) bool {
	if q.Available && p.HasTeam() {
		return false
	}
	if len(q.Roles) > 0 && !overlaps(p.Roles, q.Roles) {
		return false
	}
	if len(q.Technologies) > 0 && !overlaps(p.Technologies, q.Technologies) {
		return false
	}
	return true
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

// ListParticipants lists the marathon's participants, newest first. Banned
// and suspended participants are only visible to organizers.
func (s *Service) ListParticipants(ctx context.Context, actor Actor, marathonID string, q ParticipantQuery) ([]*Participant, error) {
	var out []*Participant
	err := s.store.View(ctx, func(tx Tx) error {
		m, moderator, err := s.viewer(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		all, err := tx.ListParticipants(ctx, ParticipantFilter{MarathonID: m.ID})
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		out = make([]*Participant, 0, len(all))
		for _, p := range all {
			if !moderator && !p.Active() {
				continue
			}
			if q.match(p) {
				out = append(out, p)
			}
		}
		slices.Reverse(out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetParticipant(ctx context.Context, actor Actor, marathonID, participantID string) (*Participant, error) {
	var out *Participant
	err := s.store.View(ctx, func(tx Tx) error {
		m, moderator, err := s.viewer(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		p, err := tx.GetParticipant(ctx, participantID)
		if err != nil || p.MarathonID != m.ID || (!moderator && !p.Active()) {
			return describeMissing(orNotFound(err), "participant")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// viewer admits participants and organizers of the marathon.
func (s *Service) viewer(ctx context.Context, tx Tx, marathonID string, actor Actor) (*Marathon, bool, error) {
	m, err := tx.GetMarathon(ctx, marathonID)
	if err != nil {
		return nil, false, describeMissing(err, "marathon")
	}
	if canModerate(m, actor) {
		return m, true, nil
	}
	if _, err := participantIn(ctx, tx, m.ID, actor); err != nil {
		if IsNotFound(err) {
			return nil, false, Forbidden("you are not a participant of this marathon")
		}
		return nil, false, err
	}
	return m, false, nil
}
