package pgstore

import (
	"context"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"

	sq "github.com/Masterminds/squirrel"
)

var applicationCols = []string{
	"id", "marathon_id", "team_id", "participant_id", "message", "status", "created_at", "resolved_at",
}

func scanApplication(r scanner) (*governance.Application, error) {
	var a governance.Application
	err := r.Scan(&a.ID, &a.MarathonID, &a.TeamID, &a.ParticipantID, &a.Message, &a.Status, &a.CreatedAt, &a.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// offerWhere narrows an application or invitation query; both tables share
// the same scoping columns.
func offerWhere(marathonID, teamID, participantID string) sq.And {
	and := sq.And{}
	if marathonID != "" {
		and = append(and, sq.Eq{"marathon_id": marathonID})
	}
	if teamID != "" {
		and = append(and, sq.Eq{"team_id": teamID})
	}
	if participantID != "" {
		and = append(and, sq.Eq{"participant_id": participantID})
	}
	return and
}

func (t *txn) GetApplication(ctx context.Context, id string) (*governance.Application, error) {
	q := t.forUpdate(psql.Select(applicationCols...).From("applications").Where(sq.Eq{"id": id}))
	a, err := scanApplication(t.row(ctx, q))
	if err != nil {
		return nil, mapErr(err, "application")
	}
	return a, nil
}

func (t *txn) ListApplications(ctx context.Context, f governance.ApplicationFilter) ([]*governance.Application, error) {
	q := psql.Select(applicationCols...).From("applications").
		Where(offerWhere(f.MarathonID, f.TeamID, f.ParticipantID))
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	rows, err := t.query(ctx, q.OrderBy("created_at", "id"))
	return collect(rows, err, "applications", scanApplication)
}

func (t *txn) InsertApplication(ctx context.Context, a *governance.Application) error {
	q := psql.Insert("applications").Columns(applicationCols...).
		Values(a.ID, a.MarathonID, a.TeamID, a.ParticipantID, a.Message, a.Status, a.CreatedAt, a.ResolvedAt)
	_, err := t.exec(ctx, q)
	return mapErr(err, "application")
}

func (t *txn) UpdateApplication(ctx context.Context, a *governance.Application) error {
	q := psql.Update("applications").
		Set("message", a.Message).
		Set("status", a.Status).
		Set("resolved_at", a.ResolvedAt).
		Where(sq.Eq{"id": a.ID})
	tag, err := t.exec(ctx, q)
	return mustAffect(tag, err, "application", a.ID)
}

func (t *txn) ResolveApplications(ctx context.Context, f governance.ApplicationFilter, to governance.ApplicationStatus, at time.Time) (int, error) {
	q := psql.Update("applications").
		Set("status", to).
		Set("resolved_at", at).
		Where(sq.Eq{"status": governance.ApplicationPending}).
		Where(offerWhere(f.MarathonID, f.TeamID, f.ParticipantID))
	tag, err := t.exec(ctx, q)
	return affected(tag, err, "applications")
}

var invitationCols = []string{
	"id", "marathon_id", "team_id", "participant_id", "request_id", "message", "status", "created_at", "resolved_at",
}

func scanInvitation(r scanner) (*governance.Invitation, error) {
	var inv governance.Invitation
	err := r.Scan(&inv.ID, &inv.MarathonID, &inv.TeamID, &inv.ParticipantID, &inv.RequestID,
		&inv.Message, &inv.Status, &inv.CreatedAt, &inv.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (t *txn) GetInvitation(ctx context.Context, id string) (*governance.Invitation, error) {
	q := t.forUpdate(psql.Select(invitationCols...).From("invitations").Where(sq.Eq{"id": id}))
	inv, err := scanInvitation(t.row(ctx, q))
	if err != nil {
		return nil, mapErr(err, "invitation")
	}
	return inv, nil
}

func (t *txn) ListInvitations(ctx context.Context, f governance.InvitationFilter) ([]*governance.Invitation, error) {
	q := psql.Select(invitationCols...).From("invitations").
		Where(offerWhere(f.MarathonID, f.TeamID, f.ParticipantID))
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	rows, err := t.query(ctx, q.OrderBy("created_at", "id"))
	return collect(rows, err, "invitations", scanInvitation)
}

func (t *txn) InsertInvitation(ctx context.Context, inv *governance.Invitation) error {
	q := psql.Insert("invitations").Columns(invitationCols...).Values(
		inv.ID, inv.MarathonID, inv.TeamID, inv.ParticipantID, inv.RequestID,
		inv.Message, inv.Status, inv.CreatedAt, inv.ResolvedAt,
	)
	_, err := t.exec(ctx, q)
	return mapErr(err, "invitation")
}

func (t *txn) UpdateInvitation(ctx context.Context, inv *governance.Invitation) error {
	q := psql.Update("invitations").
		Set("message", inv.Message).
		Set("status", inv.Status).
		Set("resolved_at", inv.ResolvedAt).
		Where(sq.Eq{"id": inv.ID})
	tag, err := t.exec(ctx, q)
	return mustAffect(tag, err, "invitation", inv.ID)
}

func (t *txn) ResolveInvitations(ctx context.Context, f governance.InvitationFilter, to governance.InvitationStatus, at time.Time) (int, error) {
	q := psql.Update("invitations").
		Set("status", to).
		Set("resolved_at", at).
		Where(sq.Eq{"status": governance.InvitationPending}).
		Where(offerWhere(f.MarathonID, f.TeamID, f.ParticipantID))
	tag, err := t.exec(ctx, q)
	return affected(tag, err, "invitations")
}
