package pgstore

import (
	"context"

	"kyri56xcaesar/marathon-proj/internal/governance"

	sq "github.com/Masterminds/squirrel"
)

var teamCols = []string{
	"id", "marathon_id", "name", "COALESCE(leader_id, '')", "management_type",
	"decision_system", "genre", "description", "pitch_doc", "design_doc",
	"chat_link", "git_link", "is_suspended", "suspend_reason", "member_count",
	"created_at", "updated_at",
}

func scanTeam(r scanner) (*governance.Team, error) {
	var t governance.Team
	err := r.Scan(&t.ID, &t.MarathonID, &t.Name, &t.LeaderID, &t.ManagementType,
		&t.DecisionSystem, &t.Genre, &t.Description, &t.PitchDoc, &t.DesignDoc,
		&t.ChatLink, &t.GitLink, &t.IsSuspended, &t.SuspendReason, &t.MemberCount,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *txn) GetTeam(ctx context.Context, id string) (*governance.Team, error) {
	q := t.forUpdate(psql.Select(teamCols...).From("teams").Where(sq.Eq{"id": id}))
	team, err := scanTeam(t.row(ctx, q))
	if err != nil {
		return nil, mapErr(err, "team")
	}
	return team, nil
}

func teamQuery(f governance.TeamFilter) sq.SelectBuilder {
	q := psql.Select(teamCols...).From("teams")
	if f.MarathonID != "" {
		q = q.Where(sq.Eq{"marathon_id": f.MarathonID})
	}
	if f.ManagementType != "" {
		q = q.Where(sq.Eq{"management_type": f.ManagementType})
	}
	if f.DecisionSystem != "" {
		q = q.Where(sq.Eq{"decision_system": f.DecisionSystem})
	}
	if f.Genre != "" {
		q = q.Where("lower(genre) = lower(?)", f.Genre)
	}
	if !f.IncludeSuspended {
		q = q.Where(sq.Eq{"is_suspended": false})
	}
	return q.OrderBy("created_at", "id")
}

func (t *txn) ListTeams(ctx context.Context, f governance.TeamFilter) ([]*governance.Team, error) {
	rows, err := t.query(ctx, teamQuery(f))
	return collect(rows, err, "teams", scanTeam)
}

func (t *txn) InsertTeam(ctx context.Context, team *governance.Team) error {
	q := psql.Insert("teams").Columns(
		"id", "marathon_id", "name", "leader_id", "management_type",
		"decision_system", "genre", "description", "pitch_doc", "design_doc",
		"chat_link", "git_link", "is_suspended", "suspend_reason", "member_count",
		"created_at", "updated_at",
	).Values(
		team.ID, team.MarathonID, team.Name, nullable(team.LeaderID), team.ManagementType,
		team.DecisionSystem, team.Genre, team.Description, team.PitchDoc, team.DesignDoc,
		team.ChatLink, team.GitLink, team.IsSuspended, team.SuspendReason, team.MemberCount,
		team.CreatedAt, team.UpdatedAt,
	)
	_, err := t.exec(ctx, q)
	return mapErr(err, "team")
}

func (t *txn) UpdateTeam(ctx context.Context, team *governance.Team) error {
	q := psql.Update("teams").SetMap(map[string]any{
		"name":            team.Name,
		"leader_id":       nullable(team.LeaderID),
		"management_type": team.ManagementType,
		"decision_system": team.DecisionSystem,
		"genre":           team.Genre,
		"description":     team.Description,
		"pitch_doc":       team.PitchDoc,
		"design_doc":      team.DesignDoc,
		"chat_link":       team.ChatLink,
		"git_link":        team.GitLink,
		"is_suspended":    team.IsSuspended,
		"suspend_reason":  team.SuspendReason,
		"member_count":    team.MemberCount,
		"updated_at":      team.UpdatedAt,
	}).Where(sq.Eq{"id": team.ID})
	tag, err := t.exec(ctx, q)
	return mustAffect(tag, err, "team", team.ID)
}

// DeleteTeam removes the team row and its positions. Requests, applications
// and invitations keep their team id as history.
func (t *txn) DeleteTeam(ctx context.Context, id string) error {
	tag, err := t.exec(ctx, psql.Delete("teams").Where(sq.Eq{"id": id}))
	return mustAffect(tag, err, "team", id)
}

var positionCols = []string{"id", "team_id", "marathon_id", "role", "description", "created_at"}

func scanPosition(r scanner) (*governance.OpenPosition, error) {
	var p governance.OpenPosition
	if err := r.Scan(&p.ID, &p.TeamID, &p.MarathonID, &p.Role, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txn) GetPosition(ctx context.Context, id string) (*governance.OpenPosition, error) {
	q := t.forUpdate(psql.Select(positionCols...).From("open_positions").Where(sq.Eq{"id": id}))
	p, err := scanPosition(t.row(ctx, q))
	if err != nil {
		return nil, mapErr(err, "position")
	}
	return p, nil
}

func (t *txn) ListPositions(ctx context.Context, f governance.PositionFilter) ([]*governance.OpenPosition, error) {
	q := psql.Select(positionCols...).From("open_positions")
	if f.MarathonID != "" {
		q = q.Where(sq.Eq{"marathon_id": f.MarathonID})
	}
	if f.TeamID != "" {
		q = q.Where(sq.Eq{"team_id": f.TeamID})
	}
	if f.Role != "" {
		q = q.Where("lower(role) = lower(?)", f.Role)
	}
	rows, err := t.query(ctx, q.OrderBy("created_at", "id"))
	return collect(rows, err, "positions", scanPosition)
}

func (t *txn) InsertPosition(ctx context.Context, p *governance.OpenPosition) error {
	q := psql.Insert("open_positions").Columns(positionCols...).
		Values(p.ID, p.TeamID, p.MarathonID, p.Role, p.Description, p.CreatedAt)
	_, err := t.exec(ctx, q)
	return mapErr(err, "position")
}

func (t *txn) DeletePosition(ctx context.Context, id string) error {
	tag, err := t.exec(ctx, psql.Delete("open_positions").Where(sq.Eq{"id": id}))
	return mustAffect(tag, err, "position", id)
}

func (t *txn) DeletePositions(ctx context.Context, teamID string) (int, error) {
	tag, err := t.exec(ctx, psql.Delete("open_positions").Where(sq.Eq{"team_id": teamID}))
	return affected(tag, err, "positions")
}
