package governance_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"
	"kyri56xcaesar/marathon-proj/internal/governance/memstore"

	"go.uber.org/zap/zaptest"
)

var organizer = governance.Actor{UserID: "org"}

func user(name string) governance.Actor {
	return governance.Actor{UserID: "user-" + name}
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	svc      *governance.Service
	marathon *governance.Marathon
	people   map[string]*governance.Participant
}

func newFixture(t *testing.T, maxTeamSize int) *fixture {
	t.Helper()

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seq := 0
	svc := governance.NewService(memstore.New(),
		governance.WithLogger(zaptest.NewLogger(t)),
		governance.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		governance.WithIDs(func() string {
			seq++
			return fmt.Sprintf("id-%04d", seq)
		}),
	)

	f := &fixture{t: t, ctx: context.Background(), svc: svc, people: map[string]*governance.Participant{}}
	m, err := svc.CreateMarathon(f.ctx, organizer, governance.MarathonInput{
		Name:        "Spring Jam",
		Slug:        "spring",
		MinTeamSize: 1,
		MaxTeamSize: maxTeamSize,
	})
	if err != nil {
		t.Fatalf("CreateMarathon: %v", err)
	}
	f.marathon = m
	return f
}

// join registers the named users as participants.
func (f *fixture) join(names ...string) {
	f.t.Helper()
	for _, name := range names {
		p, err := f.svc.JoinMarathon(f.ctx, user(name), f.marathon.ID)
		if err != nil {
			f.t.Fatalf("JoinMarathon(%s): %v", name, err)
		}
		f.people[name] = p
	}
}

func (f *fixture) id(name string) string {
	f.t.Helper()
	p, ok := f.people[name]
	if !ok {
		f.t.Fatalf("unknown participant %q", name)
	}
	return p.ID
}

func (f *fixture) participant(name string) *governance.Participant {
	f.t.Helper()
	var out *governance.Participant
	err := f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		var err error
		out, err = tx.GetParticipant(f.ctx, f.id(name))
		return err
	})
	if err != nil {
		f.t.Fatalf("GetParticipant(%s): %v", name, err)
	}
	return out
}

func (f *fixture) team(id string) *governance.Team {
	f.t.Helper()
	var out *governance.Team
	err := f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		var err error
		out, err = tx.GetTeam(f.ctx, id)
		return err
	})
	if err != nil {
		f.t.Fatalf("GetTeam(%s): %v", id, err)
	}
	return out
}

func (f *fixture) teamExists(id string) bool {
	f.t.Helper()
	var found bool
	err := f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		_, err := tx.GetTeam(f.ctx, id)
		if governance.IsNotFound(err) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		f.t.Fatalf("GetTeam(%s): %v", id, err)
	}
	return found
}

func (f *fixture) request(id string) *governance.TeamRequest {
	f.t.Helper()
	var out *governance.TeamRequest
	err := f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		var err error
		out, err = tx.GetRequest(f.ctx, id)
		return err
	})
	if err != nil {
		f.t.Fatalf("GetRequest(%s): %v", id, err)
	}
	return out
}

func (f *fixture) application(id string) *governance.Application {
	f.t.Helper()
	var out *governance.Application
	err := f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		var err error
		out, err = tx.GetApplication(f.ctx, id)
		return err
	})
	if err != nil {
		f.t.Fatalf("GetApplication(%s): %v", id, err)
	}
	return out
}

func (f *fixture) invitation(id string) *governance.Invitation {
	f.t.Helper()
	var out *governance.Invitation
	err := f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		var err error
		out, err = tx.GetInvitation(f.ctx, id)
		return err
	})
	if err != nil {
		f.t.Fatalf("GetInvitation(%s): %v", id, err)
	}
	return out
}

func (f *fixture) positions(teamID string) []*governance.OpenPosition {
	f.t.Helper()
	var out []*governance.OpenPosition
	err := f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		var err error
		out, err = tx.ListPositions(f.ctx, governance.PositionFilter{TeamID: teamID})
		return err
	})
	if err != nil {
		f.t.Fatalf("ListPositions(%s): %v", teamID, err)
	}
	return out
}

// createTeam has founder create a team. The founder must have joined.
func (f *fixture) createTeam(founder string, ds governance.DecisionSystem) *governance.Team {
	f.t.Helper()
	team, err := f.svc.CreateTeam(f.ctx, user(founder), f.marathon.ID, governance.TeamInput{
		Name:           founder + "'s team",
		ManagementType: governance.ManagementKanban,
		DecisionSystem: ds,
	})
	if err != nil {
		f.t.Fatalf("CreateTeam(%s): %v", founder, err)
	}
	return team
}

// teamOf builds a team led by founder, with members admitted through
// applications the founder accepts, then switched to ds.
func (f *fixture) teamOf(ds governance.DecisionSystem, founder string, members ...string) *governance.Team {
	f.t.Helper()
	f.join(append([]string{founder}, members...)...)
	team := f.createTeam(founder, governance.Dictatorship)
	for _, m := range members {
		app := f.apply(m, team.ID)
		f.propose(founder, team.ID, governance.AcceptApplicationPayload{ApplicationID: app.ID})
	}
	if ds == governance.Democracy {
		f.propose(founder, team.ID, governance.ChangeDecisionSystemPayload{DecisionSystem: governance.Democracy})
	}
	return f.team(team.ID)
}

func (f *fixture) apply(name, teamID string) *governance.Application {
	f.t.Helper()
	app, err := f.svc.CreateApplication(f.ctx, user(name), f.marathon.ID, teamID, "let me in")
	if err != nil {
		f.t.Fatalf("CreateApplication(%s): %v", name, err)
	}
	return app
}

func (f *fixture) propose(author, teamID string, p governance.Payload) *governance.TeamRequest {
	f.t.Helper()
	req, err := f.svc.CreateTeamRequest(f.ctx, user(author), teamID, p)
	if err != nil {
		f.t.Fatalf("CreateTeamRequest(%s, %s): %v", author, p.Type(), err)
	}
	return req
}

func (f *fixture) vote(name, requestID string, c governance.Choice) *governance.TeamRequest {
	f.t.Helper()
	req, err := f.svc.Vote(f.ctx, user(name), requestID, c)
	if err != nil {
		f.t.Fatalf("Vote(%s): %v", name, err)
	}
	return req
}

// invite has the dictatorship leader invite name and returns the invitation.
func (f *fixture) invite(leader, teamID, name string) *governance.Invitation {
	f.t.Helper()
	req := f.propose(leader, teamID, governance.InvitePayload{ParticipantID: f.id(name)})
	invs, err := f.svc.ListMyInvitations(f.ctx, user(name), f.marathon.ID, governance.InvitationPending)
	if err != nil {
		f.t.Fatalf("ListMyInvitations(%s): %v", name, err)
	}
	for _, inv := range invs {
		if inv.RequestID == req.ID {
			return inv.Invitation
		}
	}
	f.t.Fatalf("no invitation for %s from request %s", name, req.ID)
	return nil
}

// checkInvariants verifies the roster invariants over the whole store.
func (f *fixture) checkInvariants() {
	f.t.Helper()
	err := f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		teams, err := tx.ListTeams(f.ctx, governance.TeamFilter{IncludeSuspended: true})
		if err != nil {
			return err
		}
		for _, team := range teams {
			n, err := tx.CountMembers(f.ctx, team.ID)
			if err != nil {
				return err
			}
			if n != team.MemberCount {
				f.t.Errorf("team %s memberCount = %d, want %d", team.ID, team.MemberCount, n)
			}
			if n == 0 {
				f.t.Errorf("team %s has no members but still exists", team.ID)
			}
			if (team.LeaderID != "") != (team.DecisionSystem == governance.Dictatorship) {
				f.t.Errorf("team %s leader = %q under %s", team.ID, team.LeaderID, team.DecisionSystem)
			}
			if team.LeaderID != "" {
				leader, err := tx.GetParticipant(f.ctx, team.LeaderID)
				if err != nil {
					return err
				}
				if leader.TeamID != team.ID {
					f.t.Errorf("team %s leader %s is not a member", team.ID, leader.ID)
				}
			}
		}
		return nil
	})
	if err != nil {
		f.t.Fatalf("checkInvariants: %v", err)
	}
}

func wantKind(t *testing.T, err error, kind governance.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("err = nil, want %s", kind)
	}
	if got := governance.KindOf(err); got != kind {
		t.Fatalf("err kind = %q (%v), want %s", got, err, kind)
	}
}

func wantIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}
