// Package memstore is an in-memory governance.Store. A unit of work runs
// against a private copy of the state, which replaces the shared state only
// when the unit succeeds, so a failed unit leaves nothing behind.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"
)

type state struct {
	marathons    map[string]governance.Marathon
	participants map[string]governance.Participant
	teams        map[string]governance.Team
	positions    map[string]governance.OpenPosition
	applications map[string]governance.Application
	invitations  map[string]governance.Invitation
	requests     map[string]governance.TeamRequest
}

func newState() state {
	return state{
		marathons:    map[string]governance.Marathon{},
		participants: map[string]governance.Participant{},
		teams:        map[string]governance.Team{},
		positions:    map[string]governance.OpenPosition{},
		applications: map[string]governance.Application{},
		invitations:  map[string]governance.Invitation{},
		requests:     map[string]governance.TeamRequest{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.marathons {
		c.marathons[k] = cloneMarathon(v)
	}
	for k, v := range s.participants {
		c.participants[k] = cloneParticipant(v)
	}
	for k, v := range s.teams {
		c.teams[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	for k, v := range s.applications {
		c.applications[k] = cloneApplication(v)
	}
	for k, v := range s.invitations {
		c.invitations[k] = cloneInvitation(v)
	}
	for k, v := range s.requests {
		c.requests[k] = cloneRequest(v)
	}
	return c
}

func cloneMarathon(m governance.Marathon) governance.Marathon {
	m.Organizers = slices.Clone(m.Organizers)
	return m
}

func cloneParticipant(p governance.Participant) governance.Participant {
	p.Roles = slices.Clone(p.Roles)
	p.Technologies = slices.Clone(p.Technologies)
	return p
}

func cloneApplication(a governance.Application) governance.Application {
	a.ResolvedAt = cloneTime(a.ResolvedAt)
	return a
}

func cloneInvitation(i governance.Invitation) governance.Invitation {
	i.ResolvedAt = cloneTime(i.ResolvedAt)
	return i
}

// Payload variants are plain values, so copying the interface is enough.
func cloneRequest(r governance.TeamRequest) governance.TeamRequest {
	r.Votes = slices.Clone(r.Votes)
	r.DecidedAt = cloneTime(r.DecidedAt)
	r.ResolvedAt = cloneTime(r.ResolvedAt)
	r.ExecutedAt = cloneTime(r.ExecutedAt)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Store is safe for concurrent use. Units are serialised by one mutex.
type Store struct {
	mu    sync.RWMutex
	state state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx governance.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &txn{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx governance.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(&txn{state: snapshot, readOnly: true})
}

type txn struct {
	state    state
	readOnly bool
}

var _ governance.Tx = (*txn)(nil)

func (t *txn) writable() error {
	if t.readOnly {
		return governance.Invalid("write in a read-only unit")
	}
	return nil
}

func missing(what, id string) error {
	return governance.NotFound("%s %s not found", what, id)
}

// sorted returns values ordered by creation time, then id.
func sorted[V any](m map[string]V, keep func(V) bool, created func(V) time.Time, id func(V) string) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b V) int {
		if c := created(a).Compare(created(b)); c != 0 {
			return c
		}
		return strings.Compare(id(a), id(b))
	})
	return out
}

// marathons

func (t *txn) GetMarathon(_ context.Context, id string) (*governance.Marathon, error) {
	m, ok := t.state.marathons[id]
	if !ok {
		return nil, missing("marathon", id)
	}
	c := cloneMarathon(m)
	return &c, nil
}

func (t *txn) GetMarathonBySlug(_ context.Context, slug string) (*governance.Marathon, error) {
	for _, m := range t.state.marathons {
		if m.Slug == slug {
			c := cloneMarathon(m)
			return &c, nil
		}
	}
	return nil, missing("marathon", slug)
}

func (t *txn) ListMarathons(_ context.Context) ([]*governance.Marathon, error) {
	rows := sorted(t.state.marathons,
		func(governance.Marathon) bool { return true },
		func(m governance.Marathon) time.Time { return m.CreatedAt },
		func(m governance.Marathon) string { return m.ID },
	)
	out := make([]*governance.Marathon, len(rows))
	for i := range rows {
		c := cloneMarathon(rows[i])
		out[i] = &c
	}
	return out, nil
}

func (t *txn) InsertMarathon(_ context.Context, m *governance.Marathon) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.marathons[m.ID]; ok {
		return governance.Conflict("marathon %s already exists", m.ID)
	}
	for _, other := range t.state.marathons {
		if other.Slug == m.Slug {
			return governance.Conflict("slug %q is already taken", m.Slug)
		}
	}
	t.state.marathons[m.ID] = cloneMarathon(*m)
	return nil
}

func (t *txn) UpdateMarathon(_ context.Context, m *governance.Marathon) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.marathons[m.ID]; !ok {
		return missing("marathon", m.ID)
	}
	t.state.marathons[m.ID] = cloneMarathon(*m)
	return nil
}

func (t *txn) DeleteMarathon(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.marathons[id]; !ok {
		return missing("marathon", id)
	}
	delete(t.state.marathons, id)

	teams := map[string]bool{}
	for k, v := range t.state.teams {
		if v.MarathonID == id {
			teams[k] = true
			delete(t.state.teams, k)
		}
	}
	for k, v := range t.state.participants {
		if v.MarathonID == id {
			delete(t.state.participants, k)
		}
	}
	for k, v := range t.state.positions {
		if v.MarathonID == id {
			delete(t.state.positions, k)
		}
	}
	for k, v := range t.state.applications {
		if v.MarathonID == id {
			delete(t.state.applications, k)
		}
	}
	for k, v := range t.state.invitations {
		if v.MarathonID == id {
			delete(t.state.invitations, k)
		}
	}
	for k, v := range t.state.requests {
		if teams[v.TeamID] {
			delete(t.state.requests, k)
		}
	}
	return nil
}

// participants

func (t *txn) GetParticipant(_ context.Context, id string) (*governance.Participant, error) {
	p, ok := t.state.participants[id]
	if !ok {
		return nil, missing("participant", id)
	}
	c := cloneParticipant(p)
	return &c, nil
}

func (t *txn) findParticipant(match func(governance.Participant) bool) (*governance.Participant, bool) {
	for _, p := range t.state.participants {
		if match(p) {
			c := cloneParticipant(p)
			return &c, true
		}
	}
	return nil, false
}

func (t *txn) GetParticipantByUser(_ context.Context, marathonID, userID string) (*governance.Participant, error) {
	p, ok := t.findParticipant(func(p governance.Participant) bool {
		return p.MarathonID == marathonID && p.UserID == userID
	})
	if !ok {
		return nil, missing("participant", userID)
	}
	return p, nil
}

func (t *txn) GetParticipantByNickname(_ context.Context, marathonID, nickname string) (*governance.Participant, error) {
	p, ok := t.findParticipant(func(p governance.Participant) bool {
		return p.MarathonID == marathonID && p.Nickname != "" && p.Nickname == nickname
	})
	if !ok {
		return nil, missing("participant", nickname)
	}
	return p, nil
}

func (t *txn) ListParticipants(_ context.Context, f governance.ParticipantFilter) ([]*governance.Participant, error) {
	rows := sorted(t.state.participants,
		func(p governance.Participant) bool {
			return (f.MarathonID == "" || p.MarathonID == f.MarathonID) && (f.TeamID == "" || p.TeamID == f.TeamID)
		},
		func(p governance.Participant) time.Time { return p.CreatedAt },
		func(p governance.Participant) string { return p.ID },
	)
	out := make([]*governance.Participant, len(rows))
	for i := range rows {
		c := cloneParticipant(rows[i])
		out[i] = &c
	}
	return out, nil
}

func (t *txn) checkParticipantUnique(p *governance.Participant) error {
	for _, other := range t.state.participants {
		if other.ID == p.ID || other.MarathonID != p.MarathonID {
			continue
		}
		if other.UserID == p.UserID {
			return governance.Conflict("user already participates in this marathon")
		}
		if p.Nickname != "" && other.Nickname == p.Nickname {
			return governance.Conflict("nickname %q is already taken", p.Nickname)
		}
	}
	return nil
}

func (t *txn) InsertParticipant(_ context.Context, p *governance.Participant) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.participants[p.ID]; ok {
		return governance.Conflict("participant %s already exists", p.ID)
	}
	if err := t.checkParticipantUnique(p); err != nil {
		return err
	}
	t.state.participants[p.ID] = cloneParticipant(*p)
	return nil
}

func (t *txn) UpdateParticipant(_ context.Context, p *governance.Participant) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.participants[p.ID]; !ok {
		return missing("participant", p.ID)
	}
	if err := t.checkParticipantUnique(p); err != nil {
		return err
	}
	t.state.participants[p.ID] = cloneParticipant(*p)
	return nil
}

func (t *txn) DeleteParticipant(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.participants[id]; !ok {
		return missing("participant", id)
	}
	delete(t.state.participants, id)
	return nil
}

func (t *txn) CountMembers(_ context.Context, teamID string) (int, error) {
	n := 0
	for _, p := range t.state.participants {
		if p.TeamID == teamID {
			n++
		}
	}
	return n, nil
}

// teams

func (t *txn) GetTeam(_ context.Context, id string) (*governance.Team, error) {
	team, ok := t.state.teams[id]
	if !ok {
		return nil, missing("team", id)
	}
	return &team, nil
}

func (t *txn) ListTeams(_ context.Context, f governance.TeamFilter) ([]*governance.Team, error) {
	rows := sorted(t.state.teams,
		func(v governance.Team) bool {
			switch {
			case f.MarathonID != "" && v.MarathonID != f.MarathonID:
				return false
			case f.ManagementType != "" && v.ManagementType != f.ManagementType:
				return false
			case f.DecisionSystem != "" && v.DecisionSystem != f.DecisionSystem:
				return false
			case f.Genre != "" && !strings.EqualFold(v.Genre, f.Genre):
				return false
			case !f.IncludeSuspended && v.IsSuspended:
				return false
			}
			return true
		},
		func(v governance.Team) time.Time { return v.CreatedAt },
		func(v governance.Team) string { return v.ID },
	)
	out := make([]*governance.Team, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (t *txn) InsertTeam(_ context.Context, team *governance.Team) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.teams[team.ID]; ok {
		return governance.Conflict("team %s already exists", team.ID)
	}
	t.state.teams[team.ID] = *team
	return nil
}

func (t *txn) UpdateTeam(_ context.Context, team *governance.Team) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.teams[team.ID]; !ok {
		return missing("team", team.ID)
	}
	t.state.teams[team.ID] = *team
	return nil
}

func (t *txn) DeleteTeam(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.teams[id]; !ok {
		return missing("team", id)
	}
	delete(t.state.teams, id)
	return nil
}

// positions

func (t *txn) GetPosition(_ context.Context, id string) (*governance.OpenPosition, error) {
	p, ok := t.state.positions[id]
	if !ok {
		return nil, missing("position", id)
	}
	return &p, nil
}

func (t *txn) ListPositions(_ context.Context, f governance.PositionFilter) ([]*governance.OpenPosition, error) {
	rows := sorted(t.state.positions,
		func(p governance.OpenPosition) bool {
			return (f.MarathonID == "" || p.MarathonID == f.MarathonID) &&
				(f.TeamID == "" || p.TeamID == f.TeamID) &&
				(f.Role == "" || strings.EqualFold(p.Role, f.Role))
		},
		func(p governance.OpenPosition) time.Time { return p.CreatedAt },
		func(p governance.OpenPosition) string { return p.ID },
	)
	out := make([]*governance.OpenPosition, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (t *txn) InsertPosition(_ context.Context, p *governance.OpenPosition) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.positions[p.ID]; ok {
		return governance.Conflict("position %s already exists", p.ID)
	}
	t.state.positions[p.ID] = *p
	return nil
}

func (t *txn) DeletePosition(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.positions[id]; !ok {
		return missing("position", id)
	}
	delete(t.state.positions, id)
	return nil
}

func (t *txn) DeletePositions(_ context.Context, teamID string) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := 0
	for k, v := range t.state.positions {
		if v.TeamID == teamID {
			delete(t.state.positions, k)
			n++
		}
	}
	return n, nil
}

// applications

func matchApplication(f governance.ApplicationFilter, a governance.Application) bool {
	return (f.MarathonID == "" || a.MarathonID == f.MarathonID) &&
		(f.TeamID == "" || a.TeamID == f.TeamID) &&
		(f.ParticipantID == "" || a.ParticipantID == f.ParticipantID)
}

func (t *txn) GetApplication(_ context.Context, id string) (*governance.Application, error) {
	a, ok := t.state.applications[id]
	if !ok {
		return nil, missing("application", id)
	}
	c := cloneApplication(a)
	return &c, nil
}

func (t *txn) ListApplications(_ context.Context, f governance.ApplicationFilter) ([]*governance.Application, error) {
	rows := sorted(t.state.applications,
		func(a governance.Application) bool {
			return matchApplication(f, a) && (f.Status == "" || a.Status == f.Status)
		},
		func(a governance.Application) time.Time { return a.CreatedAt },
		func(a governance.Application) string { return a.ID },
	)
	out := make([]*governance.Application, len(rows))
	for i := range rows {
		c := cloneApplication(rows[i])
		out[i] = &c
	}
	return out, nil
}

func (t *txn) InsertApplication(_ context.Context, a *governance.Application) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.applications[a.ID]; ok {
		return governance.Conflict("application %s already exists", a.ID)
	}
	t.state.applications[a.ID] = cloneApplication(*a)
	return nil
}

func (t *txn) UpdateApplication(_ context.Context, a *governance.Application) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.applications[a.ID]; !ok {
		return missing("application", a.ID)
	}
	t.state.applications[a.ID] = cloneApplication(*a)
	return nil
}

func (t *txn) ResolveApplications(_ context.Context, f governance.ApplicationFilter, to governance.ApplicationStatus, at time.Time) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := 0
	for k, a := range t.state.applications {
		if a.Status != governance.ApplicationPending || !matchApplication(f, a) {
			continue
		}
		a.Status = to
		a.ResolvedAt = cloneTime(&at)
		t.state.applications[k] = a
		n++
	}
	return n, nil
}

// invitations

func matchInvitation(f governance.InvitationFilter, i governance.Invitation) bool {
	return (f.MarathonID == "" || i.MarathonID == f.MarathonID) &&
		(f.TeamID == "" || i.TeamID == f.TeamID) &&
		(f.ParticipantID == "" || i.ParticipantID == f.ParticipantID)
}

func (t *txn) GetInvitation(_ context.Context, id string) (*governance.Invitation, error) {
	i, ok := t.state.invitations[id]
	if !ok {
		return nil, missing("invitation", id)
	}
	c := cloneInvitation(i)
	return &c, nil
}

func (t *txn) ListInvitations(_ context.Context, f governance.InvitationFilter) ([]*governance.Invitation, error) {
	rows := sorted(t.state.invitations,
		func(i governance.Invitation) bool {
			return matchInvitation(f, i) && (f.Status == "" || i.Status == f.Status)
		},
		func(i governance.Invitation) time.Time { return i.CreatedAt },
		func(i governance.Invitation) string { return i.ID },
	)
	out := make([]*governance.Invitation, len(rows))
	for i := range rows {
		c := cloneInvitation(rows[i])
		out[i] = &c
	}
	return out, nil
}

func (t *txn) InsertInvitation(_ context.Context, inv *governance.Invitation) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.invitations[inv.ID]; ok {
		return governance.Conflict("invitation %s already exists", inv.ID)
	}
	t.state.invitations[inv.ID] = cloneInvitation(*inv)
	return nil
}

func (t *txn) UpdateInvitation(_ context.Context, inv *governance.Invitation) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.invitations[inv.ID]; !ok {
		return missing("invitation", inv.ID)
	}
	t.state.invitations[inv.ID] = cloneInvitation(*inv)
	return nil
}

func (t *txn) ResolveInvitations(_ context.Context, f governance.InvitationFilter, to governance.InvitationStatus, at time.Time) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := 0
	for k, i := range t.state.invitations {
		if i.Status != governance.InvitationPending || !matchInvitation(f, i) {
			continue
		}
		i.Status = to
		i.ResolvedAt = cloneTime(&at)
		t.state.invitations[k] = i
		n++
	}
	return n, nil
}

// requests

func matchRequest(f governance.RequestFilter, r governance.TeamRequest) bool {
	return (f.TeamID == "" || r.TeamID == f.TeamID) &&
		(f.Type == "" || r.Type == f.Type) &&
		(f.Status == "" || r.Status == f.Status)
}

func (t *txn) GetRequest(_ context.Context, id string) (*governance.TeamRequest, error) {
	r, ok := t.state.requests[id]
	if !ok {
		return nil, missing("request", id)
	}
	c := cloneRequest(r)
	return &c, nil
}

// ListRequests returns newest first, the order teams review them in.
func (t *txn) ListRequests(_ context.Context, f governance.RequestFilter) ([]*governance.TeamRequest, error) {
	rows := sorted(t.state.requests,
		func(r governance.TeamRequest) bool { return matchRequest(f, r) },
		func(r governance.TeamRequest) time.Time { return r.CreatedAt },
		func(r governance.TeamRequest) string { return r.ID },
	)
	slices.Reverse(rows)
	out := make([]*governance.TeamRequest, len(rows))
	for i := range rows {
		c := cloneRequest(rows[i])
		out[i] = &c
	}
	return out, nil
}

func (t *txn) InsertRequest(_ context.Context, r *governance.TeamRequest) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.requests[r.ID]; ok {
		return governance.Conflict("request %s already exists", r.ID)
	}
	t.state.requests[r.ID] = cloneRequest(*r)
	return nil
}

func (t *txn) UpdateRequest(_ context.Context, r *governance.TeamRequest) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.requests[r.ID]; !ok {
		return missing("request", r.ID)
	}
	t.state.requests[r.ID] = cloneRequest(*r)
	return nil
}

func (t *txn) DeleteRequests(_ context.Context, f governance.RequestFilter) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := 0
	for k, r := range t.state.requests {
		if matchRequest(f, r) {
			delete(t.state.requests, k)
			n++
		}
	}
	return n, nil
}

func (t *txn) ResolveRequests(_ context.Context, teamID string, to governance.RequestStatus, at time.Time) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := 0
	for k, r := range t.state.requests {
		if r.TeamID != teamID || r.Status != governance.RequestPending {
			continue
		}
		r.Status = to
		r.ResolvedAt = cloneTime(&at)
		t.state.requests[k] = r
		n++
	}
	return n, nil
}
