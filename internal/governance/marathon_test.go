package governance_test

import (
	"strings"
	"testing"

	"kyri56xcaesar/marathon-proj/internal/governance"
)

func TestCreateMarathonValidation(t *testing.T) {
	f := newFixture(t, 5)

	tests := []struct {
		name string
		in   governance.MarathonInput
		want governance.Kind
	}{
		{"no name", governance.MarathonInput{Slug: "a", MinTeamSize: 1, MaxTeamSize: 2}, governance.KindValidation},
		{"bad slug", governance.MarathonInput{Name: "A", Slug: "no spaces", MinTeamSize: 1, MaxTeamSize: 2}, governance.KindValidation},
		{"long slug", governance.MarathonInput{Name: "A", Slug: "abcdefghijklmnopq", MinTeamSize: 1, MaxTeamSize: 2}, governance.KindValidation},
		{"zero size", governance.MarathonInput{Name: "A", Slug: "a", MinTeamSize: 0, MaxTeamSize: 2}, governance.KindValidation},
		{"inverted sizes", governance.MarathonInput{Name: "A", Slug: "a", MinTeamSize: 4, MaxTeamSize: 2}, governance.KindValidation},
		{"taken slug", governance.MarathonInput{Name: "A", Slug: "SPRING", MinTeamSize: 1, MaxTeamSize: 2}, governance.KindConflict},
		{"long topic", governance.MarathonInput{Name: "A", Slug: "a", Topic: strings.Repeat("t", 101), MinTeamSize: 1, MaxTeamSize: 2}, governance.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateMarathon(f.ctx, organizer, tt.in)
			wantKind(t, err, tt.want)
		})
	}

	_, err := f.svc.CreateMarathon(f.ctx, governance.Actor{}, governance.MarathonInput{Name: "A", Slug: "a", MinTeamSize: 1, MaxTeamSize: 2})
	wantKind(t, err, governance.KindForbidden)
}

func TestGetAndDeleteMarathon(t *testing.T) {
	f := newFixture(t, 5)
	f.teamOf(governance.Dictatorship, "ann", "bob")

	m, err := f.svc.GetMarathon(f.ctx, " Spring ")
	if err != nil {
		t.Fatalf("GetMarathon: %v", err)
	}
	if m.ID != f.marathon.ID || m.CreatorID != organizer.UserID {
		t.Fatalf("marathon = %+v", m)
	}

	if _, err := f.svc.AddOrganizer(f.ctx, organizer, m.ID, "helper"); err != nil {
		t.Fatalf("AddOrganizer: %v", err)
	}
	err = f.svc.DeleteMarathon(f.ctx, governance.Actor{UserID: "helper"}, m.ID)
	wantKind(t, err, governance.KindForbidden)

	if err := f.svc.DeleteMarathon(f.ctx, organizer, m.ID); err != nil {
		t.Fatalf("DeleteMarathon: %v", err)
	}
	_, err = f.svc.GetMarathon(f.ctx, "spring")
	wantKind(t, err, governance.KindNotFound)

	// the slug is free again and nothing of the old marathon leaks in
	m, err = f.svc.CreateMarathon(f.ctx, organizer, governance.MarathonInput{Name: "Again", Slug: "spring", MinTeamSize: 1, MaxTeamSize: 5})
	if err != nil {
		t.Fatalf("CreateMarathon: %v", err)
	}
	ps, err := f.svc.ListParticipants(f.ctx, organizer, m.ID, governance.ParticipantQuery{})
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(ps) != 0 {
		t.Fatalf("participants = %d, want 0", len(ps))
	}
}

func TestOrganizers(t *testing.T) {
	f := newFixture(t, 5)
	f.join("ann")

	_, err := f.svc.AddOrganizer(f.ctx, user("ann"), f.marathon.ID, "x")
	wantKind(t, err, governance.KindForbidden)

	m, err := f.svc.AddOrganizer(f.ctx, organizer, f.marathon.ID, "helper")
	if err != nil {
		t.Fatalf("AddOrganizer: %v", err)
	}
	if !m.IsOrganizer("helper") {
		t.Fatalf("organizers = %v, want helper", m.Organizers)
	}
	_, err = f.svc.AddOrganizer(f.ctx, organizer, f.marathon.ID, "helper")
	wantKind(t, err, governance.KindConflict)
	_, err = f.svc.AddOrganizer(f.ctx, organizer, f.marathon.ID, " ")
	wantKind(t, err, governance.KindValidation)

	_, err = f.svc.RemoveOrganizer(f.ctx, governance.Actor{UserID: "helper"}, f.marathon.ID, organizer.UserID)
	wantKind(t, err, governance.KindForbidden)
	_, err = f.svc.RemoveOrganizer(f.ctx, organizer, f.marathon.ID, "nobody")
	wantKind(t, err, governance.KindNotFound)

	m, err = f.svc.RemoveOrganizer(f.ctx, organizer, f.marathon.ID, "helper")
	if err != nil {
		t.Fatalf("RemoveOrganizer: %v", err)
	}
	if m.IsOrganizer("helper") {
		t.Fatalf("organizers = %v, want helper removed", m.Organizers)
	}
}

func TestJoinAndLeaveMarathon(t *testing.T) {
	f := newFixture(t, 5)
	f.join("ann")

	_, err := f.svc.JoinMarathon(f.ctx, user("ann"), f.marathon.ID)
	wantKind(t, err, governance.KindConflict)
	_, err = f.svc.JoinMarathon(f.ctx, user("ann"), "missing")
	wantKind(t, err, governance.KindNotFound)
	_, err = f.svc.JoinMarathon(f.ctx, governance.Actor{}, f.marathon.ID)
	wantKind(t, err, governance.KindForbidden)

	team := f.teamOf(governance.Dictatorship, "bob")
	app := f.apply("ann", team.ID)
	if err := f.svc.LeaveMarathon(f.ctx, user("ann"), f.marathon.ID); err != nil {
		t.Fatalf("LeaveMarathon: %v", err)
	}
	if st := f.application(app.ID).Status; st != governance.ApplicationCancelled {
		t.Fatalf("application = %s, want cancelled", st)
	}
	err = f.svc.LeaveMarathon(f.ctx, user("ann"), f.marathon.ID)
	wantKind(t, err, governance.KindNotFound)

	if _, err := f.svc.JoinMarathon(f.ctx, user("ann"), f.marathon.ID); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, 5)
	f.join("ann", "bob")

	p, err := f.svc.UpdateProfile(f.ctx, user("ann"), f.marathon.ID, governance.ProfileInput{
		Name:         ptr(" Ann "),
		Nickname:     ptr("Annie"),
		Roles:        []string{"coder", " coder", ""},
		Technologies: []string{"go"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if p.Name != "Ann" || p.Nickname != "annie" || len(p.Roles) != 1 || p.Roles[0] != "coder" {
		t.Fatalf("profile = %+v", p)
	}

	_, err = f.svc.UpdateProfile(f.ctx, user("bob"), f.marathon.ID, governance.ProfileInput{Nickname: ptr("ANNIE")})
	wantKind(t, err, governance.KindConflict)
	_, err = f.svc.UpdateProfile(f.ctx, user("bob"), f.marathon.ID, governance.ProfileInput{Nickname: ptr("bad nick")})
	wantKind(t, err, governance.KindValidation)

	// resubmitting one's own nickname is not a conflict
	if _, err := f.svc.UpdateProfile(f.ctx, user("ann"), f.marathon.ID, governance.ProfileInput{Nickname: ptr("annie")}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	_, err = f.svc.UpdateProfile(f.ctx, user("zed"), f.marathon.ID, governance.ProfileInput{Name: ptr("Zed")})
	wantKind(t, err, governance.KindNotFound)

	p, err = f.svc.UpdateProfile(f.ctx, organizer, f.marathon.ID, governance.ProfileInput{Name: ptr("Host")})
	if err != nil {
		t.Fatalf("UpdateProfile(organizer): %v", err)
	}
	if p.UserID != organizer.UserID || p.Name != "Host" {
		t.Fatalf("organizer profile = %+v", p)
	}
	me, err := f.svc.GetMyProfile(f.ctx, organizer, f.marathon.ID)
	if err != nil || me.ID != p.ID {
		t.Fatalf("GetMyProfile = %v, %v", me, err)
	}
}

func TestListParticipants(t *testing.T) {
	f := newFixture(t, 5)
	f.teamOf(governance.Dictatorship, "ann")
	f.join("bob", "cat", "dan")
	for name, roles := range map[string][]string{"bob": {"artist"}, "cat": {"coder"}, "dan": {"artist"}} {
		if _, err := f.svc.UpdateProfile(f.ctx, user(name), f.marathon.ID, governance.ProfileInput{Roles: roles}); err != nil {
			t.Fatalf("UpdateProfile(%s): %v", name, err)
		}
	}
	if _, err := f.svc.SuspendParticipant(f.ctx, organizer, f.marathon.ID, f.id("dan"), "spam"); err != nil {
		t.Fatalf("SuspendParticipant: %v", err)
	}

	ps, err := f.svc.ListParticipants(f.ctx, user("bob"), f.marathon.ID, governance.ParticipantQuery{})
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(ps) != 3 || ps[0].ID != f.id("cat") {
		t.Fatalf("participants = %d, first %s; want 3 newest first", len(ps), ps[0].ID)
	}

	ps, err = f.svc.ListParticipants(f.ctx, organizer, f.marathon.ID, governance.ParticipantQuery{Available: true, Roles: []string{"artist"}})
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("available artists = %d, want 2", len(ps))
	}

	_, err = f.svc.ListParticipants(f.ctx, user("zed"), f.marathon.ID, governance.ParticipantQuery{})
	wantKind(t, err, governance.KindForbidden)

	_, err = f.svc.GetParticipant(f.ctx, user("bob"), f.marathon.ID, f.id("dan"))
	wantKind(t, err, governance.KindNotFound)
	if _, err := f.svc.GetParticipant(f.ctx, organizer, f.marathon.ID, f.id("dan")); err != nil {
		t.Fatalf("GetParticipant(organizer): %v", err)
	}
}

func TestCreateTeam(t *testing.T) {
	f := newFixture(t, 5)
	f.join("ann", "bob")

	team, err := f.svc.CreateTeam(f.ctx, user("ann"), f.marathon.ID, governance.TeamInput{
		Name:           "Owls",
		ManagementType: governance.ManagementKanban,
		DecisionSystem: governance.Democracy,
		GitLink:        "https://git.example.com/owls",
	})
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if team.MemberCount != 1 || team.LeaderID != "" {
		t.Fatalf("team = %d members, leader %q", team.MemberCount, team.LeaderID)
	}
	if got := f.participant("ann").TeamID; got != team.ID {
		t.Fatalf("ann teamId = %q, want %q", got, team.ID)
	}

	_, err = f.svc.CreateTeam(f.ctx, user("ann"), f.marathon.ID, governance.TeamInput{
		Name: "Twice", ManagementType: governance.ManagementFree, DecisionSystem: governance.Democracy,
	})
	wantKind(t, err, governance.KindConflict)

	bad := []governance.TeamInput{
		{Name: "", ManagementType: governance.ManagementFree, DecisionSystem: governance.Democracy},
		{Name: "x", ManagementType: "chaos", DecisionSystem: governance.Democracy},
		{Name: "x", ManagementType: governance.ManagementFree, DecisionSystem: "anarchy"},
		{Name: "x", ManagementType: governance.ManagementFree, DecisionSystem: governance.Democracy, ChatLink: "not a link"},
	}
	for _, in := range bad {
		_, err := f.svc.CreateTeam(f.ctx, user("bob"), f.marathon.ID, in)
		wantKind(t, err, governance.KindValidation)
	}
	f.checkInvariants()
}

func TestTeamViews(t *testing.T) {
	f := newFixture(t, 5)
	owls := f.teamOf(governance.Dictatorship, "ann", "bob")
	f.teamOf(governance.Democracy, "cat")
	f.join("dan")
	f.propose("ann", owls.ID, governance.OpenPositionPayload{Role: "Artist"})

	teams, err := f.svc.ListTeams(f.ctx, user("dan"), f.marathon.ID, governance.TeamQuery{})
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("teams = %d, want 2", len(teams))
	}
	teams, err = f.svc.ListTeams(f.ctx, user("dan"), f.marathon.ID, governance.TeamQuery{PositionRole: "artist"})
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != owls.ID || len(teams[0].Positions) != 1 {
		t.Fatalf("teams hiring artists = %+v", teams)
	}
	teams, err = f.svc.ListTeams(f.ctx, user("dan"), f.marathon.ID, governance.TeamQuery{DecisionSystem: governance.Democracy})
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 1 || teams[0].ID == owls.ID {
		t.Fatalf("democracies = %+v", teams)
	}

	detail, err := f.svc.GetMyTeam(f.ctx, user("bob"), f.marathon.ID)
	if err != nil {
		t.Fatalf("GetMyTeam: %v", err)
	}
	if detail.ID != owls.ID || len(detail.Members) != 2 || len(detail.Positions) != 1 || detail.Me != f.id("bob") {
		t.Fatalf("detail = %+v", detail)
	}
	_, err = f.svc.GetMyTeam(f.ctx, user("dan"), f.marathon.ID)
	wantKind(t, err, governance.KindNotFound)
	_, err = f.svc.LeaveTeam(f.ctx, user("dan"), f.marathon.ID)
	wantKind(t, err, governance.KindConflict)
}

func TestApplications(t *testing.T) {
	f := newFixture(t, 5)
	team := f.teamOf(governance.Dictatorship, "ann")
	other := f.teamOf(governance.Dictatorship, "bob")
	f.join("cat", "dan")

	app := f.apply("cat", team.ID)
	f.apply("cat", other.ID)
	_, err := f.svc.CreateApplication(f.ctx, user("cat"), f.marathon.ID, team.ID, "again")
	wantKind(t, err, governance.KindConflict)
	_, err = f.svc.CreateApplication(f.ctx, user("bob"), f.marathon.ID, team.ID, "")
	wantKind(t, err, governance.KindConflict)
	_, err = f.svc.CreateApplication(f.ctx, user("cat"), f.marathon.ID, "ghost", "")
	wantKind(t, err, governance.KindNotFound)

	views, err := f.svc.ListTeamApplications(f.ctx, user("ann"), team.ID, governance.ApplicationPending)
	if err != nil {
		t.Fatalf("ListTeamApplications: %v", err)
	}
	if len(views) != 1 || views[0].Applicant == nil || views[0].Applicant.ID != f.id("cat") {
		t.Fatalf("applications = %+v", views)
	}
	_, err = f.svc.ListTeamApplications(f.ctx, user("dan"), team.ID, "")
	wantKind(t, err, governance.KindForbidden)

	_, err = f.svc.CancelApplication(f.ctx, user("dan"), f.marathon.ID, app.ID)
	wantKind(t, err, governance.KindNotFound)
	got, err := f.svc.CancelApplication(f.ctx, user("cat"), f.marathon.ID, app.ID)
	if err != nil {
		t.Fatalf("CancelApplication: %v", err)
	}
	if got.Status != governance.ApplicationCancelled {
		t.Fatalf("application = %s, want cancelled", got.Status)
	}
	_, err = f.svc.CancelApplication(f.ctx, user("cat"), f.marathon.ID, app.ID)
	wantKind(t, err, governance.KindConflict)

	mine, err := f.svc.ListMyApplications(f.ctx, user("cat"), f.marathon.ID, "")
	if err != nil {
		t.Fatalf("ListMyApplications: %v", err)
	}
	if len(mine) != 2 || mine[0].TeamName != other.Name {
		t.Fatalf("my applications = %+v, want 2 newest first", mine)
	}
}

func TestListMarathons(t *testing.T) {
	f := newFixture(t, 5)
	autumn, err := f.svc.CreateMarathon(f.ctx, organizer, governance.MarathonInput{
		Name:        "Autumn Jam",
		Slug:        "autumn",
		Topic:       " Time loops ",
		Description: "Two weeks, any engine.",
		MinTeamSize: 2,
		MaxTeamSize: 5,
	})
	if err != nil {
		t.Fatalf("CreateMarathon: %v", err)
	}
	if autumn.Topic != "Time loops" {
		t.Fatalf("topic = %q, want it trimmed", autumn.Topic)
	}

	all, err := f.svc.ListMarathons(f.ctx)
	if err != nil {
		t.Fatalf("ListMarathons: %v", err)
	}
	if len(all) != 2 || all[0].ID != autumn.ID || all[1].ID != f.marathon.ID {
		t.Fatalf("marathons = %+v, want autumn then spring", all)
	}
	if all[0].Description != "Two weeks, any engine." {
		t.Fatalf("description = %q", all[0].Description)
	}
}

func TestGetMyStatus(t *testing.T) {
	f := newFixture(t, 5)
	team := f.teamOf(governance.Dictatorship, "ann", "bob")
	f.join("cat")

	st, err := f.svc.GetMyStatus(f.ctx, user("bob"), f.marathon.ID)
	if err != nil {
		t.Fatalf("GetMyStatus: %v", err)
	}
	want := governance.MarathonStatus{IsParticipant: true, HasTeam: true, TeamID: team.ID, ParticipantID: f.id("bob")}
	if st != want {
		t.Fatalf("bob = %+v, want %+v", st, want)
	}

	if _, err := f.svc.BanParticipant(f.ctx, organizer, f.marathon.ID, f.id("cat"), "cheating"); err != nil {
		t.Fatalf("BanParticipant: %v", err)
	}
	st, err = f.svc.GetMyStatus(f.ctx, user("cat"), f.marathon.ID)
	if err != nil {
		t.Fatalf("GetMyStatus: %v", err)
	}
	if !st.IsParticipant || !st.IsBanned || st.HasTeam {
		t.Fatalf("cat = %+v, want a banned participant without team", st)
	}

	st, err = f.svc.GetMyStatus(f.ctx, organizer, f.marathon.ID)
	if err != nil {
		t.Fatalf("GetMyStatus: %v", err)
	}
	if st.IsParticipant || !st.IsOrganizer || !st.IsCreator {
		t.Fatalf("organizer = %+v", st)
	}

	_, err = f.svc.GetMyStatus(f.ctx, governance.Actor{}, f.marathon.ID)
	wantKind(t, err, governance.KindForbidden)
	_, err = f.svc.GetMyStatus(f.ctx, user("bob"), "missing")
	wantKind(t, err, governance.KindNotFound)
}

func TestGetTeam(t *testing.T) {
	f := newFixture(t, 5)
	owls := f.teamOf(governance.Dictatorship, "ann", "bob")
	f.propose("ann", owls.ID, governance.OpenPositionPayload{Role: "artist"})
	f.join("cat")

	detail, err := f.svc.GetTeam(f.ctx, user("cat"), f.marathon.ID, owls.ID)
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if detail.ID != owls.ID || len(detail.Members) != 2 || len(detail.Positions) != 1 || detail.Me != f.id("cat") {
		t.Fatalf("detail = %+v", detail)
	}

	_, err = f.svc.GetTeam(f.ctx, user("zed"), f.marathon.ID, owls.ID)
	wantKind(t, err, governance.KindForbidden)
	_, err = f.svc.GetTeam(f.ctx, user("cat"), f.marathon.ID, "missing")
	wantKind(t, err, governance.KindNotFound)

	if _, err := f.svc.SuspendTeam(f.ctx, organizer, f.marathon.ID, owls.ID, "offensive name"); err != nil {
		t.Fatalf("SuspendTeam: %v", err)
	}
	_, err = f.svc.GetTeam(f.ctx, user("cat"), f.marathon.ID, owls.ID)
	wantKind(t, err, governance.KindNotFound)
	detail, err = f.svc.GetTeam(f.ctx, organizer, f.marathon.ID, owls.ID)
	if err != nil {
		t.Fatalf("GetTeam as organizer: %v", err)
	}
	if !detail.IsSuspended || detail.Me != "" {
		t.Fatalf("detail = %+v", detail)
	}
}
