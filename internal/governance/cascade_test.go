package governance_test

import (
	"testing"

	"kyri56xcaesar/marathon-proj/internal/governance"
)

func TestLeaderLeavesMarathon(t *testing.T) {
	f := newFixture(t, 10)
	team := f.teamOf(governance.Dictatorship, "ann", "bob", "cat")

	err := f.svc.LeaveMarathon(f.ctx, user("ann"), f.marathon.ID)
	wantKind(t, err, governance.KindConflict)

	res, err := f.svc.LeaveTeam(f.ctx, user("ann"), f.marathon.ID)
	if err != nil {
		t.Fatalf("LeaveTeam: %v", err)
	}
	if !res.RemovedFromTeam || !res.TeamBecameDemocracy || res.TeamDeleted {
		t.Fatalf("result = %+v, want removed and demoted", res)
	}
	if err := f.svc.LeaveMarathon(f.ctx, user("ann"), f.marathon.ID); err != nil {
		t.Fatalf("LeaveMarathon: %v", err)
	}

	got := f.team(team.ID)
	if got.MemberCount != 2 || got.DecisionSystem != governance.Democracy || got.LeaderID != "" {
		t.Fatalf("team = %d members, %s, leader %q; want 2, democracy, none", got.MemberCount, got.DecisionSystem, got.LeaderID)
	}
	_, err = f.svc.GetMyProfile(f.ctx, user("ann"), f.marathon.ID)
	wantKind(t, err, governance.KindNotFound)
	f.checkInvariants()
}

func TestLastMemberLeaves(t *testing.T) {
	f := newFixture(t, 10)
	team := f.teamOf(governance.Dictatorship, "ann")
	f.join("bob", "cat")

	f.propose("ann", team.ID, governance.OpenPositionPayload{Role: "artist"})
	app := f.apply("bob", team.ID)
	inv := f.invite("ann", team.ID, "cat")
	history := f.propose("ann", team.ID, governance.UpdateSettingsPayload{Changes: governance.SettingsPatch{Genre: ptr("racing")}})

	res, err := f.svc.LeaveTeam(f.ctx, user("ann"), f.marathon.ID)
	if err != nil {
		t.Fatalf("LeaveTeam: %v", err)
	}
	if !res.TeamDeleted {
		t.Fatalf("result = %+v, want team deleted", res)
	}
	if f.teamExists(team.ID) {
		t.Fatalf("team still exists")
	}
	if n := len(f.positions(team.ID)); n != 0 {
		t.Fatalf("positions = %d, want 0", n)
	}
	if got := f.application(app.ID).Status; got != governance.ApplicationRejected {
		t.Fatalf("application = %s, want rejected", got)
	}
	if got := f.invitation(inv.ID).Status; got != governance.InvitationInvalidated {
		t.Fatalf("invitation = %s, want invalidated", got)
	}
	// resolved requests are history and survive the team
	if got := f.request(history.ID).Status; got != governance.RequestApproved {
		t.Fatalf("request = %s, want approved", got)
	}
	if got := f.participant("ann").TeamID; got != "" {
		t.Fatalf("ann teamId = %q, want none", got)
	}
}

func TestAcceptInvitationCollapsesOffers(t *testing.T) {
	f := newFixture(t, 10)
	a := f.teamOf(governance.Dictatorship, "ann")
	b := f.teamOf(governance.Dictatorship, "bob")
	c := f.teamOf(governance.Dictatorship, "cat")
	f.join("eve")

	app := f.apply("eve", a.ID)
	invB := f.invite("bob", b.ID, "eve")
	invC := f.invite("cat", c.ID, "eve")

	got, err := f.svc.AcceptInvitation(f.ctx, user("eve"), f.marathon.ID, invB.ID)
	if err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}
	if got.Status != governance.InvitationAccepted || got.ResolvedAt == nil {
		t.Fatalf("invitation = %s, want accepted", got.Status)
	}
	if team := f.participant("eve").TeamID; team != b.ID {
		t.Fatalf("eve teamId = %q, want %q", team, b.ID)
	}
	if st := f.application(app.ID).Status; st != governance.ApplicationCancelled {
		t.Fatalf("application = %s, want cancelled", st)
	}
	if st := f.invitation(invC.ID).Status; st != governance.InvitationInvalidated {
		t.Fatalf("other invitation = %s, want invalidated", st)
	}
	if n := f.team(b.ID).MemberCount; n != 2 {
		t.Fatalf("memberCount = %d, want 2", n)
	}
	f.checkInvariants()
}

func TestAcceptInvitationToVanishedTeam(t *testing.T) {
	f := newFixture(t, 10)
	team := f.teamOf(governance.Dictatorship, "ann")
	f.join("bob")
	inv := f.invite("ann", team.ID, "bob")

	err := f.svc.Store().InTx(f.ctx, func(tx governance.Tx) error {
		return tx.DeleteTeam(f.ctx, team.ID)
	})
	if err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}

	_, err = f.svc.AcceptInvitation(f.ctx, user("bob"), f.marathon.ID, inv.ID)
	wantKind(t, err, governance.KindConflict)
	if st := f.invitation(inv.ID).Status; st != governance.InvitationInvalidated {
		t.Fatalf("invitation = %s, want invalidated", st)
	}
	if got := f.participant("bob").TeamID; got != "" {
		t.Fatalf("bob teamId = %q, want none", got)
	}
}

func TestAcceptInvitationToFullTeam(t *testing.T) {
	f := newFixture(t, 2)
	team := f.teamOf(governance.Dictatorship, "ann")
	f.join("bob", "cat")
	inv := f.invite("ann", team.ID, "cat")

	app := f.apply("bob", team.ID)
	f.propose("ann", team.ID, governance.AcceptApplicationPayload{ApplicationID: app.ID})

	_, err := f.svc.AcceptInvitation(f.ctx, user("cat"), f.marathon.ID, inv.ID)
	wantKind(t, err, governance.KindConflict)
	if st := f.invitation(inv.ID).Status; st != governance.InvitationPending {
		t.Fatalf("invitation = %s, want pending", st)
	}
	if n := f.team(team.ID).MemberCount; n != 2 {
		t.Fatalf("memberCount = %d, want 2", n)
	}
}

func TestDeclineInvitation(t *testing.T) {
	f := newFixture(t, 10)
	team := f.teamOf(governance.Dictatorship, "ann")
	f.join("bob")
	inv := f.invite("ann", team.ID, "bob")

	_, err := f.svc.DeclineInvitation(f.ctx, user("ann"), f.marathon.ID, inv.ID)
	wantKind(t, err, governance.KindNotFound)

	got, err := f.svc.DeclineInvitation(f.ctx, user("bob"), f.marathon.ID, inv.ID)
	if err != nil {
		t.Fatalf("DeclineInvitation: %v", err)
	}
	if got.Status != governance.InvitationDeclined {
		t.Fatalf("invitation = %s, want declined", got.Status)
	}
	_, err = f.svc.AcceptInvitation(f.ctx, user("bob"), f.marathon.ID, inv.ID)
	wantKind(t, err, governance.KindConflict)
}

func TestBan(t *testing.T) {
	f := newFixture(t, 10)
	team := f.teamOf(governance.Dictatorship, "ann", "bob")
	other := f.teamOf(governance.Dictatorship, "cat")
	f.join("dan")
	app := f.apply("dan", other.ID)

	res, err := f.svc.BanParticipant(f.ctx, organizer, f.marathon.ID, f.id("bob"), "cheating")
	if err != nil {
		t.Fatalf("BanParticipant: %v", err)
	}
	if !res.RemovedFromTeam || res.TeamID != team.ID {
		t.Fatalf("result = %+v, want removed from %s", res, team.ID)
	}
	bob := f.participant("bob")
	if !bob.IsBanned || bob.BanReason != "cheating" || bob.TeamID != "" {
		t.Fatalf("bob = banned %v (%q) team %q", bob.IsBanned, bob.BanReason, bob.TeamID)
	}
	if n := f.team(team.ID).MemberCount; n != 1 {
		t.Fatalf("memberCount = %d, want 1", n)
	}

	_, err = f.svc.JoinMarathon(f.ctx, user("bob"), f.marathon.ID)
	wantKind(t, err, governance.KindForbidden)
	err = f.svc.LeaveMarathon(f.ctx, user("bob"), f.marathon.ID)
	wantKind(t, err, governance.KindForbidden)
	_, err = f.svc.CreateTeam(f.ctx, user("bob"), f.marathon.ID, governance.TeamInput{
		Name:           "comeback",
		ManagementType: governance.ManagementFree,
		DecisionSystem: governance.Democracy,
	})
	wantKind(t, err, governance.KindConflict)

	_, err = f.svc.BanParticipant(f.ctx, organizer, f.marathon.ID, f.id("bob"), "again")
	wantKind(t, err, governance.KindConflict)

	// a team-less participant only loses their pending offers
	res, err = f.svc.BanParticipant(f.ctx, organizer, f.marathon.ID, f.id("dan"), "cheating")
	if err != nil {
		t.Fatalf("BanParticipant: %v", err)
	}
	if res.RemovedFromTeam {
		t.Fatalf("result = %+v, want no team change", res)
	}
	if st := f.application(app.ID).Status; st != governance.ApplicationCancelled {
		t.Fatalf("application = %s, want cancelled", st)
	}
	f.checkInvariants()
}

func TestSuspendAndUnsuspend(t *testing.T) {
	f := newFixture(t, 10)
	team := f.teamOf(governance.Dictatorship, "ann", "bob")

	res, err := f.svc.SuspendParticipant(f.ctx, organizer, f.marathon.ID, f.id("ann"), "spam")
	if err != nil {
		t.Fatalf("SuspendParticipant: %v", err)
	}
	if !res.TeamBecameDemocracy {
		t.Fatalf("result = %+v, want demoted team", res)
	}
	got := f.team(team.ID)
	if got.DecisionSystem != governance.Democracy || got.LeaderID != "" || got.MemberCount != 1 {
		t.Fatalf("team = %s leader %q with %d members", got.DecisionSystem, got.LeaderID, got.MemberCount)
	}

	_, err = f.svc.CreateApplication(f.ctx, user("ann"), f.marathon.ID, team.ID, "")
	wantKind(t, err, governance.KindConflict)

	_, err = f.svc.SuspendParticipant(f.ctx, organizer, f.marathon.ID, f.id("ann"), "spam")
	wantKind(t, err, governance.KindConflict)

	p, err := f.svc.UnsuspendParticipant(f.ctx, organizer, f.marathon.ID, f.id("ann"))
	if err != nil {
		t.Fatalf("UnsuspendParticipant: %v", err)
	}
	if p.IsSuspended || p.SuspendReason != "" || p.TeamID != "" {
		t.Fatalf("ann = suspended %v (%q) team %q; want active and team-less", p.IsSuspended, p.SuspendReason, p.TeamID)
	}

	_, err = f.svc.UnsuspendParticipant(f.ctx, organizer, f.marathon.ID, f.id("ann"))
	wantKind(t, err, governance.KindConflict)
	f.apply("ann", team.ID)
	f.checkInvariants()
}

func TestModerationPermissions(t *testing.T) {
	f := newFixture(t, 10)
	f.join("ann", "bob")

	helper := governance.Actor{UserID: "helper"}
	second := governance.Actor{UserID: "second"}
	if _, err := f.svc.AddOrganizer(f.ctx, organizer, f.marathon.ID, helper.UserID); err != nil {
		t.Fatalf("AddOrganizer: %v", err)
	}
	if _, err := f.svc.AddOrganizer(f.ctx, helper, f.marathon.ID, second.UserID); err != nil {
		t.Fatalf("AddOrganizer: %v", err)
	}
	helperRow, err := f.svc.JoinMarathon(f.ctx, helper, f.marathon.ID)
	if err != nil {
		t.Fatalf("JoinMarathon: %v", err)
	}
	orgRow, err := f.svc.JoinMarathon(f.ctx, organizer, f.marathon.ID)
	if err != nil {
		t.Fatalf("JoinMarathon: %v", err)
	}

	tests := []struct {
		name   string
		actor  governance.Actor
		target string
		reason string
		want   governance.Kind
	}{
		{"participant", user("bob"), f.id("ann"), "spam", governance.KindForbidden},
		{"missing reason", organizer, f.id("ann"), "  ", governance.KindValidation},
		{"organizer on organizer", second, helperRow.ID, "spam", governance.KindForbidden},
		{"organizer on creator", helper, orgRow.ID, "spam", governance.KindForbidden},
		{"admin on creator", governance.Actor{UserID: "root", Admin: true}, orgRow.ID, "spam", governance.KindForbidden},
		{"unknown participant", organizer, "missing", "spam", governance.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SuspendParticipant(f.ctx, tt.actor, f.marathon.ID, tt.target, tt.reason)
			wantKind(t, err, tt.want)
		})
	}

	if _, err := f.svc.SuspendParticipant(f.ctx, helper, f.marathon.ID, f.id("ann"), "spam"); err != nil {
		t.Fatalf("organizer suspending participant: %v", err)
	}
	if _, err := f.svc.SuspendParticipant(f.ctx, organizer, f.marathon.ID, helperRow.ID, "spam"); err != nil {
		t.Fatalf("creator suspending organizer: %v", err)
	}
}

func TestSuspendTeam(t *testing.T) {
	f := newFixture(t, 10)
	team := f.teamOf(governance.Democracy, "ann", "bob", "cat")
	f.join("dan", "eve")

	app := f.apply("dan", team.ID)
	inv := f.propose("ann", team.ID, governance.InvitePayload{ParticipantID: f.id("eve")})
	f.vote("ann", inv.ID, governance.Approve)
	f.vote("bob", inv.ID, governance.Approve)
	invs, err := f.svc.ListMyInvitations(f.ctx, user("eve"), f.marathon.ID, governance.InvitationPending)
	if err != nil || len(invs) != 1 {
		t.Fatalf("ListMyInvitations = %d, %v; want 1", len(invs), err)
	}
	pending := f.propose("cat", team.ID, governance.OpenPositionPayload{Role: "artist"})

	_, err = f.svc.SuspendTeam(f.ctx, user("ann"), f.marathon.ID, team.ID, "offensive name")
	wantKind(t, err, governance.KindForbidden)

	got, err := f.svc.SuspendTeam(f.ctx, organizer, f.marathon.ID, team.ID, "offensive name")
	if err != nil {
		t.Fatalf("SuspendTeam: %v", err)
	}
	if !got.IsSuspended || got.SuspendReason != "offensive name" || got.MemberCount != 3 {
		t.Fatalf("team = suspended %v (%q), %d members", got.IsSuspended, got.SuspendReason, got.MemberCount)
	}
	if st := f.application(app.ID).Status; st != governance.ApplicationRejected {
		t.Fatalf("application = %s, want rejected", st)
	}
	if st := f.invitation(invs[0].ID).Status; st != governance.InvitationInvalidated {
		t.Fatalf("invitation = %s, want invalidated", st)
	}
	if st := f.request(pending.ID).Status; st != governance.RequestRejected {
		t.Fatalf("request = %s, want rejected", st)
	}

	_, err = f.svc.CreateApplication(f.ctx, user("dan"), f.marathon.ID, team.ID, "")
	wantKind(t, err, governance.KindNotFound)
	_, err = f.svc.CreateTeamRequest(f.ctx, user("ann"), team.ID, governance.OpenPositionPayload{Role: "artist"})
	wantKind(t, err, governance.KindConflict)

	teams, err := f.svc.ListTeams(f.ctx, user("dan"), f.marathon.ID, governance.TeamQuery{})
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 0 {
		t.Fatalf("participant sees %d teams, want 0", len(teams))
	}
	teams, err = f.svc.ListTeams(f.ctx, organizer, f.marathon.ID, governance.TeamQuery{})
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 1 {
		t.Fatalf("organizer sees %d teams, want 1", len(teams))
	}

	if _, err := f.svc.UnsuspendTeam(f.ctx, organizer, f.marathon.ID, team.ID); err != nil {
		t.Fatalf("UnsuspendTeam: %v", err)
	}
	f.apply("dan", team.ID)
}

func TestDeleteTeam(t *testing.T) {
	f := newFixture(t, 10)
	team := f.teamOf(governance.Dictatorship, "ann", "bob")
	f.join("cat")
	done := f.propose("ann", team.ID, governance.OpenPositionPayload{Role: "artist"})
	app := f.apply("cat", team.ID)

	err := f.svc.DeleteTeam(f.ctx, user("ann"), f.marathon.ID, team.ID)
	wantKind(t, err, governance.KindForbidden)

	if err := f.svc.DeleteTeam(f.ctx, organizer, f.marathon.ID, team.ID); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}
	if f.teamExists(team.ID) {
		t.Fatalf("team still exists")
	}
	for _, name := range []string{"ann", "bob"} {
		if got := f.participant(name).TeamID; got != "" {
			t.Fatalf("%s teamId = %q, want none", name, got)
		}
	}
	if st := f.application(app.ID).Status; st != governance.ApplicationRejected {
		t.Fatalf("application = %s, want rejected", st)
	}
	err = f.svc.Store().View(f.ctx, func(tx governance.Tx) error {
		_, err := tx.GetRequest(f.ctx, done.ID)
		return err
	})
	wantIs(t, err, governance.ErrNotFound)
	f.checkInvariants()
}
