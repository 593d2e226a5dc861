package pgstore

import (
	"context"

	"kyri56xcaesar/marathon-proj/internal/governance"

	sq "github.com/Masterminds/squirrel"
)

var marathonCols = []string{
	"id", "name", "slug", "topic", "description", "min_team_size", "max_team_size",
	"creator_id", "organizers", "created_at", "updated_at",
}

func scanMarathon(r scanner) (*governance.Marathon, error) {
	var m governance.Marathon
	err := r.Scan(&m.ID, &m.Name, &m.Slug, &m.Topic, &m.Description, &m.MinTeamSize, &m.MaxTeamSize,
		&m.CreatorID, &m.Organizers, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *txn) getMarathon(ctx context.Context, where sq.Eq) (*governance.Marathon, error) {
	q := t.forUpdate(psql.Select(marathonCols...).From("marathons").Where(where))
	m, err := scanMarathon(t.row(ctx, q))
	if err != nil {
		return nil, mapErr(err, "marathon")
	}
	return m, nil
}

func (t *txn) GetMarathon(ctx context.Context, id string) (*governance.Marathon, error) {
	return t.getMarathon(ctx, sq.Eq{"id": id})
}

func (t *txn) GetMarathonBySlug(ctx context.Context, slug string) (*governance.Marathon, error) {
	return t.getMarathon(ctx, sq.Eq{"slug": slug})
}

// ListMarathons never locks.
func (t *txn) ListMarathons(ctx context.Context) ([]*governance.Marathon, error) {
	rows, err := t.query(ctx, psql.Select(marathonCols...).From("marathons").OrderBy("created_at", "id"))
	return collect(rows, err, "marathons", scanMarathon)
}

func (t *txn) InsertMarathon(ctx context.Context, m *governance.Marathon) error {
	q := psql.Insert("marathons").Columns(marathonCols...).Values(
		m.ID, m.Name, m.Slug, m.Topic, m.Description, m.MinTeamSize, m.MaxTeamSize,
		m.CreatorID, nonNil(m.Organizers), m.CreatedAt, m.UpdatedAt,
	)
	_, err := t.exec(ctx, q)
	return mapErr(err, "marathon")
}

func (t *txn) UpdateMarathon(ctx context.Context, m *governance.Marathon) error {
	q := psql.Update("marathons").SetMap(map[string]any{
		"name":          m.Name,
		"slug":          m.Slug,
		"topic":         m.Topic,
		"description":   m.Description,
		"min_team_size": m.MinTeamSize,
		"max_team_size": m.MaxTeamSize,
		"organizers":    nonNil(m.Organizers),
		"updated_at":    m.UpdatedAt,
	}).Where(sq.Eq{"id": m.ID})
	tag, err := t.exec(ctx, q)
	return mustAffect(tag, err, "marathon", m.ID)
}

// DeleteMarathon relies on the ON DELETE CASCADE of every marathon-scoped
// table.
func (t *txn) DeleteMarathon(ctx context.Context, id string) error {
	tag, err := t.exec(ctx, psql.Delete("marathons").Where(sq.Eq{"id": id}))
	return mustAffect(tag, err, "marathon", id)
}

var participantCols = []string{
	"id", "marathon_id", "user_id", "name", "nickname", "roles", "technologies",
	"description", "COALESCE(team_id, '')", "is_banned", "ban_reason",
	"is_suspended", "suspend_reason", "created_at", "updated_at",
}

func scanParticipant(r scanner) (*governance.Participant, error) {
	var p governance.Participant
	err := r.Scan(&p.ID, &p.MarathonID, &p.UserID, &p.Name, &p.Nickname, &p.Roles, &p.Technologies,
		&p.Description, &p.TeamID, &p.IsBanned, &p.BanReason,
		&p.IsSuspended, &p.SuspendReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txn) getParticipant(ctx context.Context, where sq.Sqlizer) (*governance.Participant, error) {
	q := t.forUpdate(psql.Select(participantCols...).From("participants").Where(where))
	p, err := scanParticipant(t.row(ctx, q))
	if err != nil {
		return nil, mapErr(err, "participant")
	}
	return p, nil
}

func (t *txn) GetParticipant(ctx context.Context, id string) (*governance.Participant, error) {
	return t.getParticipant(ctx, sq.Eq{"id": id})
}

func (t *txn) GetParticipantByUser(ctx context.Context, marathonID, userID string) (*governance.Participant, error) {
	return t.getParticipant(ctx, sq.Eq{"marathon_id": marathonID, "user_id": userID})
}

func (t *txn) GetParticipantByNickname(ctx context.Context, marathonID, nickname string) (*governance.Participant, error) {
	if nickname == "" {
		return nil, governance.NotFound("participant not found")
	}
	return t.getParticipant(ctx, sq.Eq{"marathon_id": marathonID, "nickname": nickname})
}

func participantQuery(f governance.ParticipantFilter) sq.SelectBuilder {
	q := psql.Select(participantCols...).From("participants")
	if f.MarathonID != "" {
		q = q.Where(sq.Eq{"marathon_id": f.MarathonID})
	}
	if f.TeamID != "" {
		q = q.Where(sq.Eq{"team_id": f.TeamID})
	}
	return q.OrderBy("created_at", "id")
}

func (t *txn) ListParticipants(ctx context.Context, f governance.ParticipantFilter) ([]*governance.Participant, error) {
	rows, err := t.query(ctx, participantQuery(f))
	return collect(rows, err, "participants", scanParticipant)
}

func (t *txn) InsertParticipant(ctx context.Context, p *governance.Participant) error {
	q := psql.Insert("participants").Columns(
		"id", "marathon_id", "user_id", "name", "nickname", "roles", "technologies",
		"description", "team_id", "is_banned", "ban_reason",
		"is_suspended", "suspend_reason", "created_at", "updated_at",
	).Values(
		p.ID, p.MarathonID, p.UserID, p.Name, p.Nickname, nonNil(p.Roles), nonNil(p.Technologies),
		p.Description, nullable(p.TeamID), p.IsBanned, p.BanReason,
		p.IsSuspended, p.SuspendReason, p.CreatedAt, p.UpdatedAt,
	)
	_, err := t.exec(ctx, q)
	return mapErr(err, "participant")
}

func (t *txn) UpdateParticipant(ctx context.Context, p *governance.Participant) error {
	q := psql.Update("participants").SetMap(map[string]any{
		"name":           p.Name,
		"nickname":       p.Nickname,
		"roles":          nonNil(p.Roles),
		"technologies":   nonNil(p.Technologies),
		"description":    p.Description,
		"team_id":        nullable(p.TeamID),
		"is_banned":      p.IsBanned,
		"ban_reason":     p.BanReason,
		"is_suspended":   p.IsSuspended,
		"suspend_reason": p.SuspendReason,
		"updated_at":     p.UpdatedAt,
	}).Where(sq.Eq{"id": p.ID})
	tag, err := t.exec(ctx, q)
	return mustAffect(tag, err, "participant", p.ID)
}

func (t *txn) DeleteParticipant(ctx context.Context, id string) error {
	tag, err := t.exec(ctx, psql.Delete("participants").Where(sq.Eq{"id": id}))
	return mustAffect(tag, err, "participant", id)
}

func (t *txn) CountMembers(ctx context.Context, teamID string) (int, error) {
	var n int
	q := psql.Select("count(*)").From("participants").Where(sq.Eq{"team_id": teamID})
	if err := t.row(ctx, q).Scan(&n); err != nil {
		return 0, mapErr(err, "member count")
	}
	return n, nil
}
