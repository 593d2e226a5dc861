package governance

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type RepairReport struct {
	TeamsChecked    int `json:"teamsChecked"`
	CountsFixed     int `json:"countsFixed"`
	TeamsDissolved  int `json:"teamsDissolved"`
	LeadersFixed    int `json:"leadersFixed"`
	DanglingCleared int `json:"danglingCleared"`
}

func (r *RepairReport) add(o RepairReport) {
	r.TeamsChecked += o.TeamsChecked
	r.CountsFixed += o.CountsFixed
	r.TeamsDissolved += o.TeamsDissolved
	r.LeadersFixed += o.LeadersFixed
	r.DanglingCleared += o.DanglingCleared
}

// Repair restores the roster invariants on every team: the member counter
// matches the participant rows, empty teams are dissolved and a leader is
// set exactly when the team is a dictatorship. Each team is fixed in its own
// unit so one failure does not hold back the rest.
func (s *Service) Repair(ctx context.Context) (RepairReport, error) {
	var (
		rep   RepairReport
		teams []*Team
	)
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		teams, err = tx.ListTeams(ctx, TeamFilter{IncludeSuspended: true})
		return err
	})
	if err != nil {
		return rep, fmt.Errorf("list teams: %w", err)
	}

	// a unit may be replayed by the store, so its counts are merged only
	// once it committed
	var unit RepairReport
	for _, t := range teams {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		err := s.store.InTx(ctx, func(tx Tx) error {
			unit = RepairReport{}
			return s.repairTeam(ctx, tx, t.ID, &unit)
		})
		if err != nil {
			return rep, fmt.Errorf("repair team %s: %w", t.ID, err)
		}
		rep.add(unit)
		rep.TeamsChecked++
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		unit = RepairReport{}
		return s.clearDangling(ctx, tx, &unit)
	})
	if err != nil {
		return rep, fmt.Errorf("clear dangling members: %w", err)
	}
	rep.add(unit)

	s.log.Info("repair pass finished",
		zap.Int("teamsChecked", rep.TeamsChecked),
		zap.Int("countsFixed", rep.CountsFixed),
		zap.Int("teamsDissolved", rep.TeamsDissolved),
		zap.Int("leadersFixed", rep.LeadersFixed),
		zap.Int("danglingCleared", rep.DanglingCleared),
	)
	return rep, nil
}

func (s *Service) repairTeam(ctx context.Context, tx Tx, teamID string, rep *RepairReport) error {
	team, err := tx.GetTeam(ctx, teamID)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	count, err := tx.CountMembers(ctx, team.ID)
	if err != nil {
		return err
	}
	if count == 0 {
		rep.TeamsDissolved++
		s.log.Warn("dissolving empty team", zap.String("team", team.ID), zap.Int("recordedCount", team.MemberCount))
		return s.dissolveTeam(ctx, tx, team, false)
	}

	dirty := false
	if count != team.MemberCount {
		s.log.Warn("member count drifted",
			zap.String("team", team.ID),
			zap.Int("recorded", team.MemberCount),
			zap.Int("actual", count),
		)
		team.MemberCount = count
		rep.CountsFixed++
		dirty = true
	}

	switch team.DecisionSystem {
	case Dictatorship:
		leaderOK := false
		if team.LeaderID != "" {
			leader, err := tx.GetParticipant(ctx, team.LeaderID)
			if err != nil && !IsNotFound(err) {
				return err
			}
			leaderOK = err == nil && leader.TeamID == team.ID
		}
		if !leaderOK {
			team.DecisionSystem = Democracy
			team.LeaderID = ""
			rep.LeadersFixed++
			dirty = true
		}
	default:
		if team.LeaderID != "" {
			team.LeaderID = ""
			rep.LeadersFixed++
			dirty = true
		}
	}

	if !dirty {
		return nil
	}
	team.UpdatedAt = s.now()
	return tx.UpdateTeam(ctx, team)
}

// clearDangling detaches participants whose team no longer exists.
func (s *Service) clearDangling(ctx context.Context, tx Tx, rep *RepairReport) error {
	all, err := tx.ListParticipants(ctx, ParticipantFilter{})
	if err != nil {
		return err
	}
	for _, p := range all {
		if !p.HasTeam() {
			continue
		}
		_, err := tx.GetTeam(ctx, p.TeamID)
		if err == nil {
			continue
		}
		if !IsNotFound(err) {
			return err
		}
		p.TeamID = ""
		p.UpdatedAt = s.now()
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return err
		}
		rep.DanglingCleared++
	}
	return nil
}
