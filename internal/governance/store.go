package governance

import (
	"context"
	"time"
)

// Store is the persistence collaborator of the governance core. Every
// operation runs inside exactly one InTx unit; a unit either commits all of
// its writes or none of them.
//
// Implementations serialise concurrent units touching the same rows. The
// PostgreSQL store does so with row locks taken by the Tx getters, the
// in-memory store with a single mutex.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only unit. Getters do not lock.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the entity collections inside a unit of work. Getters return
// an ErrNotFound-kind error for missing rows and never share memory with the
// store, so callers may mutate the returned values and write them back.
type Tx interface {
	GetMarathon(ctx context.Context, id string) (*Marathon, error)
	GetMarathonBySlug(ctx context.Context, slug string) (*Marathon, error)
	// ListMarathons returns every marathon, oldest first.
	ListMarathons(ctx context.Context) ([]*Marathon, error)
	InsertMarathon(ctx context.Context, m *Marathon) error
	UpdateMarathon(ctx context.Context, m *Marathon) error
	// DeleteMarathon removes the marathon and every row scoped to it.
	DeleteMarathon(ctx context.Context, id string) error

	GetParticipant(ctx context.Context, id string) (*Participant, error)
	GetParticipantByUser(ctx context.Context, marathonID, userID string) (*Participant, error)
	GetParticipantByNickname(ctx context.Context, marathonID, nickname string) (*Participant, error)
	ListParticipants(ctx context.Context, f ParticipantFilter) ([]*Participant, error)
	InsertParticipant(ctx context.Context, p *Participant) error
	UpdateParticipant(ctx context.Context, p *Participant) error
	DeleteParticipant(ctx context.Context, id string) error
	CountMembers(ctx context.Context, teamID string) (int, error)

	GetTeam(ctx context.Context, id string) (*Team, error)
	ListTeams(ctx context.Context, f TeamFilter) ([]*Team, error)
	InsertTeam(ctx context.Context, t *Team) error
	UpdateTeam(ctx context.Context, t *Team) error
	DeleteTeam(ctx context.Context, id string) error

	GetPosition(ctx context.Context, id string) (*OpenPosition, error)
	ListPositions(ctx context.Context, f PositionFilter) ([]*OpenPosition, error)
	InsertPosition(ctx context.Context, p *OpenPosition) error
	DeletePosition(ctx context.Context, id string) error
	DeletePositions(ctx context.Context, teamID string) (int, error)

	GetApplication(ctx context.Context, id string) (*Application, error)
	ListApplications(ctx context.Context, f ApplicationFilter) ([]*Application, error)
	InsertApplication(ctx context.Context, a *Application) error
	UpdateApplication(ctx context.Context, a *Application) error
	// ResolveApplications moves every pending application matching f to
	// the given status. f.Status is ignored.
	ResolveApplications(ctx context.Context, f ApplicationFilter, to ApplicationStatus, at time.Time) (int, error)

	GetInvitation(ctx context.Context, id string) (*Invitation, error)
	ListInvitations(ctx context.Context, f InvitationFilter) ([]*Invitation, error)
	InsertInvitation(ctx context.Context, inv *Invitation) error
	UpdateInvitation(ctx context.Context, inv *Invitation) error
	// ResolveInvitations moves every pending invitation matching f to
	// the given status. f.Status is ignored.
	ResolveInvitations(ctx context.Context, f InvitationFilter, to InvitationStatus, at time.Time) (int, error)

	GetRequest(ctx context.Context, id string) (*TeamRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]*TeamRequest, error)
	InsertRequest(ctx context.Context, r *TeamRequest) error
	UpdateRequest(ctx context.Context, r *TeamRequest) error
	DeleteRequests(ctx context.Context, f RequestFilter) (int, error)
	// ResolveRequests moves every pending request of the team to the given
	// status without running any resolution.
	ResolveRequests(ctx context.Context, teamID string, to RequestStatus, at time.Time) (int, error)
}

// Zero-valued filter fields match everything.

type ParticipantFilter struct {
	MarathonID string
	TeamID     string
}

type TeamFilter struct {
	MarathonID       string
	ManagementType   ManagementType
	DecisionSystem   DecisionSystem
	Genre            string
	IncludeSuspended bool
}

type PositionFilter struct {
	MarathonID string
	TeamID     string
	Role       string
}

type ApplicationFilter struct {
	MarathonID    string
	TeamID        string
	ParticipantID string
	Status        ApplicationStatus
}

type InvitationFilter struct {
	MarathonID    string
	TeamID        string
	ParticipantID string
	Status        InvitationStatus
}

type RequestFilter struct {
	TeamID string
	Type   RequestType
	Status RequestStatus
}
