package governance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service runs the governance operations against a Store.
type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for every timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDs overrides the id generator.
func WithIDs(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the backing store.
func (s *Service) Store() Store {
	return s.store
}

// participantIn resolves the actor's participant row within a marathon.
func participantIn(ctx context.Context, tx Tx, marathonID string, actor Actor) (*Participant, error) {
	if actor.UserID == "" {
		return nil, Forbidden("authentication required")
	}
	p, err := tx.GetParticipantByUser(ctx, marathonID, actor.UserID)
	if err != nil {
		return nil, describeMissing(err, "participant")
	}
	return p, nil
}

// memberOf resolves the actor's participant row and checks it belongs to team.
func memberOf(ctx context.Context, tx Tx, team *Team, actor Actor) (*Participant, error) {
	p, err := participantIn(ctx, tx, team.MarathonID, actor)
	if err != nil {
		return nil, err
	}
	if p.TeamID != team.ID {
		return nil, Forbidden("not a member of this team")
	}
	return p, nil
}

func canModerate(m *Marathon, actor Actor) bool {
	return actor.Admin || m.IsOrganizer(actor.UserID)
}

func isCreator(m *Marathon, actor Actor) bool {
	return actor.Admin || (actor.UserID != "" && m.CreatorID == actor.UserID)
}
