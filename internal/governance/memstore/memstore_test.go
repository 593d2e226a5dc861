package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"kyri56xcaesar/marathon-proj/internal/governance"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx governance.Tx) error {
		ctx := context.Background()
		if err := tx.InsertMarathon(ctx, &governance.Marathon{ID: "m1", Slug: "spring", Organizers: []string{"org"}, CreatedAt: t0}); err != nil {
			return err
		}
		for i, id := range []string{"p1", "p2", "p3"} {
			p := &governance.Participant{
				ID:         id,
				MarathonID: "m1",
				UserID:     "u" + id,
				Roles:      []string{"coder"},
				CreatedAt:  t0.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.InsertParticipant(ctx, p); err != nil {
				return err
			}
		}
		return tx.InsertTeam(ctx, &governance.Team{ID: "t1", MarathonID: "m1", DecisionSystem: governance.Democracy, CreatedAt: t0})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestFailedUnitLeavesNothing(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx governance.Tx) error {
		p, err := tx.GetParticipant(ctx, "p1")
		if err != nil {
			return err
		}
		p.TeamID = "t1"
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return err
		}
		if err := tx.DeleteTeam(ctx, "t1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx = %v, want boom", err)
	}

	err = s.View(ctx, func(tx governance.Tx) error {
		p, err := tx.GetParticipant(ctx, "p1")
		if err != nil {
			return err
		}
		if p.TeamID != "" {
			t.Fatalf("teamId = %q after rollback", p.TeamID)
		}
		_, err = tx.GetTeam(ctx, "t1")
		return err
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestViewIsReadOnly(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.View(ctx, func(tx governance.Tx) error {
		return tx.DeleteTeam(ctx, "t1")
	})
	if governance.KindOf(err) != governance.KindValidation {
		t.Fatalf("write in View = %v, want a validation error", err)
	}
}

func TestReturnedRowsAreCopies(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	var leaked *governance.Participant
	_ = s.View(ctx, func(tx governance.Tx) error {
		leaked, _ = tx.GetParticipant(ctx, "p1")
		return nil
	})
	leaked.Roles[0] = "hacker"
	leaked.Name = "changed"

	_ = s.View(ctx, func(tx governance.Tx) error {
		p, _ := tx.GetParticipant(ctx, "p1")
		if p.Roles[0] != "coder" || p.Name != "" {
			t.Fatalf("stored participant changed through a returned copy: %+v", p)
		}
		return nil
	})
}

func TestUniqueness(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func(tx governance.Tx) error
	}{
		{"slug", func(tx governance.Tx) error {
			return tx.InsertMarathon(ctx, &governance.Marathon{ID: "m2", Slug: "spring"})
		}},
		{"user per marathon", func(tx governance.Tx) error {
			return tx.InsertParticipant(ctx, &governance.Participant{ID: "p9", MarathonID: "m1", UserID: "up1"})
		}},
		{"nickname", func(tx governance.Tx) error {
			p1, _ := tx.GetParticipant(ctx, "p1")
			p1.Nickname = "owl"
			if err := tx.UpdateParticipant(ctx, p1); err != nil {
				return err
			}
			p2, _ := tx.GetParticipant(ctx, "p2")
			p2.Nickname = "owl"
			return tx.UpdateParticipant(ctx, p2)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.InTx(ctx, tt.fn)
			if governance.KindOf(err) != governance.KindConflict {
				t.Fatalf("err = %v, want conflict", err)
			}
		})
	}

	// empty nicknames never collide
	err := s.InTx(ctx, func(tx governance.Tx) error {
		return tx.InsertParticipant(ctx, &governance.Participant{ID: "p4", MarathonID: "m1", UserID: "up4"})
	})
	if err != nil {
		t.Fatalf("InsertParticipant: %v", err)
	}
}

func TestBulkResolveTouchesPendingOnly(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx governance.Tx) error {
		apps := []*governance.Application{
			{ID: "a1", MarathonID: "m1", TeamID: "t1", ParticipantID: "p1", Status: governance.ApplicationPending, CreatedAt: t0},
			{ID: "a2", MarathonID: "m1", TeamID: "t1", ParticipantID: "p2", Status: governance.ApplicationAccepted, CreatedAt: t0},
			{ID: "a3", MarathonID: "m1", TeamID: "t2", ParticipantID: "p3", Status: governance.ApplicationPending, CreatedAt: t0},
		}
		for _, a := range apps {
			if err := tx.InsertApplication(ctx, a); err != nil {
				return err
			}
		}
		n, err := tx.ResolveApplications(ctx, governance.ApplicationFilter{TeamID: "t1"}, governance.ApplicationRejected, t0)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Fatalf("resolved %d applications, want 1", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	_ = s.View(ctx, func(tx governance.Tx) error {
		want := map[string]governance.ApplicationStatus{
			"a1": governance.ApplicationRejected,
			"a2": governance.ApplicationAccepted,
			"a3": governance.ApplicationPending,
		}
		for id, st := range want {
			a, err := tx.GetApplication(ctx, id)
			if err != nil {
				t.Fatalf("GetApplication(%s): %v", id, err)
			}
			if a.Status != st {
				t.Fatalf("%s = %s, want %s", id, a.Status, st)
			}
		}
		return nil
	})
}

func TestListOrder(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx governance.Tx) error {
		for i, id := range []string{"r1", "r2", "r3"} {
			r := &governance.TeamRequest{
				ID:        id,
				TeamID:    "t1",
				Type:      governance.RequestKick,
				Payload:   governance.KickPayload{MemberID: "p1"},
				Status:    governance.RequestPending,
				CreatedAt: t0.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.InsertRequest(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	_ = s.View(ctx, func(tx governance.Tx) error {
		ps, _ := tx.ListParticipants(ctx, governance.ParticipantFilter{MarathonID: "m1"})
		if len(ps) != 3 || ps[0].ID != "p1" || ps[2].ID != "p3" {
			t.Fatalf("participants not oldest first")
		}
		rs, _ := tx.ListRequests(ctx, governance.RequestFilter{TeamID: "t1"})
		if len(rs) != 3 || rs[0].ID != "r3" || rs[2].ID != "r1" {
			t.Fatalf("requests not newest first")
		}
		return nil
	})
}

func TestDeleteMarathonCascades(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx governance.Tx) error {
		return tx.DeleteMarathon(ctx, "m1")
	})
	if err != nil {
		t.Fatalf("DeleteMarathon: %v", err)
	}
	_ = s.View(ctx, func(tx governance.Tx) error {
		if _, err := tx.GetTeam(ctx, "t1"); !governance.IsNotFound(err) {
			t.Fatalf("GetTeam = %v, want not found", err)
		}
		ps, _ := tx.ListParticipants(ctx, governance.ParticipantFilter{})
		if len(ps) != 0 {
			t.Fatalf("participants = %d, want 0", len(ps))
		}
		return nil
	})
}
