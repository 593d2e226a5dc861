package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"

	sq "github.com/Masterminds/squirrel"
)

var requestCols = []string{
	"id", "team_id", "author_id", "type", "payload", "status", "votes",
	"decided_by", "decided_at", "created_at", "resolved_at", "executed_at",
}

func scanRequest(r scanner) (*governance.TeamRequest, error) {
	var (
		req            governance.TeamRequest
		payload, votes []byte
	)
	err := r.Scan(&req.ID, &req.TeamID, &req.AuthorID, &req.Type, &payload, &req.Status, &votes,
		&req.DecidedBy, &req.DecidedAt, &req.CreatedAt, &req.ResolvedAt, &req.ExecutedAt)
	if err != nil {
		return nil, err
	}
	if req.Payload, err = governance.DecodePayload(req.Type, payload); err != nil {
		return nil, fmt.Errorf("request %s payload: %w", req.ID, err)
	}
	if err := json.Unmarshal(votes, &req.Votes); err != nil {
		return nil, fmt.Errorf("request %s votes: %w", req.ID, err)
	}
	return &req, nil
}

func encodeRequest(r *governance.TeamRequest) (payload, votes []byte, err error) {
	if payload, err = governance.EncodePayload(r.Payload); err != nil {
		return nil, nil, err
	}
	vs := r.Votes
	if vs == nil {
		vs = []governance.Vote{}
	}
	if votes, err = json.Marshal(vs); err != nil {
		return nil, nil, err
	}
	return payload, votes, nil
}

func requestWhere(f governance.RequestFilter) sq.And {
	and := sq.And{}
	if f.TeamID != "" {
		and = append(and, sq.Eq{"team_id": f.TeamID})
	}
	if f.Type != "" {
		and = append(and, sq.Eq{"type": f.Type})
	}
	if f.Status != "" {
		and = append(and, sq.Eq{"status": f.Status})
	}
	return and
}

func (t *txn) GetRequest(ctx context.Context, id string) (*governance.TeamRequest, error) {
	q := t.forUpdate(psql.Select(requestCols...).From("team_requests").Where(sq.Eq{"id": id}))
	r, err := scanRequest(t.row(ctx, q))
	if err != nil {
		return nil, mapErr(err, "request")
	}
	return r, nil
}

func (t *txn) ListRequests(ctx context.Context, f governance.RequestFilter) ([]*governance.TeamRequest, error) {
	q := psql.Select(requestCols...).From("team_requests").
		Where(requestWhere(f)).
		OrderBy("created_at DESC", "id DESC")
	rows, err := t.query(ctx, q)
	return collect(rows, err, "requests", scanRequest)
}

// InsertRequest copies the marathon id from the owning team so the request
// is removed with its marathon even after the team is gone.
func (t *txn) InsertRequest(ctx context.Context, r *governance.TeamRequest) error {
	payload, votes, err := encodeRequest(r)
	if err != nil {
		return err
	}
	q := psql.Insert("team_requests").Columns(append([]string{"marathon_id"}, requestCols...)...).Values(
		sq.Expr("(SELECT marathon_id FROM teams WHERE id = ?)", r.TeamID),
		r.ID, r.TeamID, r.AuthorID, r.Type, payload, r.Status, votes,
		r.DecidedBy, r.DecidedAt, r.CreatedAt, r.ResolvedAt, r.ExecutedAt,
	)
	_, err = t.exec(ctx, q)
	return mapErr(err, "request")
}

func (t *txn) UpdateRequest(ctx context.Context, r *governance.TeamRequest) error {
	payload, votes, err := encodeRequest(r)
	if err != nil {
		return err
	}
	q := psql.Update("team_requests").SetMap(map[string]any{
		"payload":     payload,
		"status":      r.Status,
		"votes":       votes,
		"decided_by":  r.DecidedBy,
		"decided_at":  r.DecidedAt,
		"resolved_at": r.ResolvedAt,
		"executed_at": r.ExecutedAt,
	}).Where(sq.Eq{"id": r.ID})
	tag, err := t.exec(ctx, q)
	return mustAffect(tag, err, "request", r.ID)
}

func (t *txn) DeleteRequests(ctx context.Context, f governance.RequestFilter) (int, error) {
	tag, err := t.exec(ctx, psql.Delete("team_requests").Where(requestWhere(f)))
	return affected(tag, err, "requests")
}

func (t *txn) ResolveRequests(ctx context.Context, teamID string, to governance.RequestStatus, at time.Time) (int, error) {
	q := psql.Update("team_requests").
		Set("status", to).
		Set("resolved_at", at).
		Where(sq.Eq{"team_id": teamID, "status": governance.RequestPending})
	tag, err := t.exec(ctx, q)
	return affected(tag, err, "requests")
}
