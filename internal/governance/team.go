package governance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type TeamInput struct {
	Name           string         `json:"name"`
	ManagementType ManagementType `json:"managementType"`
	DecisionSystem DecisionSystem `json:"decisionSystem"`
	Genre          string         `json:"genre"`
	Description    string         `json:"description"`
	PitchDoc       string         `json:"pitchDoc"`
	DesignDoc      string         `json:"designDoc"`
	ChatLink       string         `json:"chatLink"`
	GitLink        string         `json:"gitLink"`
}

func (in *TeamInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := checkName(in.Name); err != nil {
		return err
	}
	if !in.ManagementType.Valid() {
		return Invalid("unknown management type %q", in.ManagementType)
	}
	if !in.DecisionSystem.Valid() {
		return Invalid("unknown decision system %q", in.DecisionSystem)
	}
	if err := checkLen("description", in.Description, maxDescriptionLen); err != nil {
		return err
	}
	for field, v := range map[string]string{
		"pitchDoc":  in.PitchDoc,
		"designDoc": in.DesignDoc,
		"chatLink":  in.ChatLink,
		"gitLink":   in.GitLink,
	} {
		if err := checkURL(field, v); err != nil {
			return err
		}
	}
	return nil
}

// CreateTeam founds a team with the actor as its only member. Under
// dictatorship the founder leads it.
func (s *Service) CreateTeam(ctx context.Context, actor Actor, marathonID string, in TeamInput) (*Team, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var out *Team
	err := s.store.InTx(ctx, func(tx Tx) error {
		founder, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		if !founder.Active() {
			return Conflict("suspended or banned participants cannot create teams")
		}
		if founder.HasTeam() {
			return Conflict("you already have a team")
		}

		now := s.now()
		team := &Team{
			ID:             s.newID(),
			MarathonID:     founder.MarathonID,
			Name:           in.Name,
			ManagementType: in.ManagementType,
			DecisionSystem: in.DecisionSystem,
			Genre:          in.Genre,
			Description:    in.Description,
			PitchDoc:       in.PitchDoc,
			DesignDoc:      in.DesignDoc,
			ChatLink:       in.ChatLink,
			GitLink:        in.GitLink,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if in.DecisionSystem == Dictatorship {
			team.LeaderID = founder.ID
		}
		if err := tx.InsertTeam(ctx, team); err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
		if err := s.addMember(ctx, tx, team, founder); err != nil {
			return err
		}
		s.log.Info("team created",
			zap.String("team", team.ID),
			zap.String("marathon", team.MarathonID),
			zap.String("decisionSystem", string(team.DecisionSystem)),
		)
		out = team
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type TeamQuery struct {
	ManagementType   ManagementType
	DecisionSystem   DecisionSystem
	Genre            string
	HasOpenPositions bool
	PositionRole     string
}

type TeamSummary struct {
	*Team
	Positions []*OpenPosition `json:"positions"`
}

// ListTeams lists the marathon's teams with their open positions. Suspended
// teams are only listed for organizers.
func (s *Service) ListTeams(ctx context.Context, actor Actor, marathonID string, q TeamQuery) ([]TeamSummary, error) {
	var out []TeamSummary
	err := s.store.View(ctx, func(tx Tx) error {
		m, moderator, err := s.viewer(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		teams, err := tx.ListTeams(ctx, TeamFilter{
			MarathonID:       m.ID,
			ManagementType:   q.ManagementType,
			DecisionSystem:   q.DecisionSystem,
			Genre:            q.Genre,
			IncludeSuspended: moderator,
		})
		if err != nil {
			return fmt.Errorf("list teams: %w", err)
		}
		positions, err := tx.ListPositions(ctx, PositionFilter{MarathonID: m.ID})
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}
		byTeam := make(map[string][]*OpenPosition)
		for _, p := range positions {
			byTeam[p.TeamID] = append(byTeam[p.TeamID], p)
		}

		out = make([]TeamSummary, 0, len(teams))
		for _, t := range teams {
			ps := byTeam[t.ID]
			if q.HasOpenPositions && len(ps) == 0 {
				continue
			}
			if q.PositionRole != "" && !hasRole(ps, q.PositionRole) {
				continue
			}
			if ps == nil {
				ps = []*OpenPosition{}
			}
			out = append(out, TeamSummary{Team: t, Positions: ps})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hasRole(ps []*OpenPosition, role string) bool {
	for _, p := range ps {
		if strings.EqualFold(p.Role, role) {
			return true
		}
	}
	return false
}

type TeamDetail struct {
	*Team
	Members   []*Participant  `json:"members"`
	Positions []*OpenPosition `json:"positions"`
	// Me is the caller's participant id, empty for organizers that never
	// joined.
	Me string `json:"me,omitempty"`
}

// GetMyTeam returns the actor's team with its roster and open positions.
func (s *Service) GetMyTeam(ctx context.Context, actor Actor, marathonID string) (*TeamDetail, error) {
	var out *TeamDetail
	err := s.store.View(ctx, func(tx Tx) error {
		me, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		if !me.HasTeam() {
			return NotFound("you are not in a team")
		}
		team, err := tx.GetTeam(ctx, me.TeamID)
		if err != nil {
			return describeMissing(err, "team")
		}
		members, err := tx.ListParticipants(ctx, ParticipantFilter{TeamID: team.ID})
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		positions, err := tx.ListPositions(ctx, PositionFilter{TeamID: team.ID})
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}
		out = &TeamDetail{Team: team, Members: members, Positions: positions, Me: me.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTeam shows any team of the marathon with its roster and open
// positions. Suspended teams are hidden from everyone but organizers.
func (s *Service) GetTeam(ctx context.Context, actor Actor, marathonID, teamID string) (*TeamDetail, error) {
	var out *TeamDetail
	err := s.store.View(ctx, func(tx Tx) error {
		m, moderator, err := s.viewer(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil || team.MarathonID != m.ID || (team.IsSuspended && !moderator) {
			return describeMissing(orNotFound(err), "team")
		}
		members, err := tx.ListParticipants(ctx, ParticipantFilter{TeamID: team.ID})
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		positions, err := tx.ListPositions(ctx, PositionFilter{TeamID: team.ID})
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}
		out = &TeamDetail{Team: team, Members: members, Positions: positions}
		if me, err := tx.GetParticipantByUser(ctx, m.ID, actor.UserID); err == nil {
			out.Me = me.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LeaveTeam takes the actor out of their team.
func (s *Service) LeaveTeam(ctx context.Context, actor Actor, marathonID string) (DepartureResult, error) {
	var out DepartureResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		me, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		if !me.HasTeam() {
			return Conflict("you are not in a team")
		}
		out, err = s.depart(ctx, tx, me)
		if err != nil {
			return err
		}
		s.log.Info("participant left team",
			zap.String("participant", me.ID),
			zap.String("team", out.TeamID),
			zap.Bool("teamDeleted", out.TeamDeleted),
		)
		return nil
	})
	if err != nil {
		return DepartureResult{}, err
	}
	return out, nil
}
