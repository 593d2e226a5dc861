package governance

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// CreateApplication files the actor's request to join a team.
func (s *Service) CreateApplication(ctx context.Context, actor Actor, marathonID, teamID, message string) (*Application, error) {
	if err := checkLen("message", message, maxMessageLen); err != nil {
		return nil, err
	}

	var out *Application
	err := s.store.InTx(ctx, func(tx Tx) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil || team.MarathonID != marathonID || team.IsSuspended {
			return describeMissing(orNotFound(err), "team")
		}
		applicant, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		if !applicant.Active() {
			return Conflict("suspended or banned participants cannot apply")
		}
		if applicant.HasTeam() {
			return Conflict("you already have a team")
		}
		pending, err := tx.ListApplications(ctx, ApplicationFilter{TeamID: team.ID, ParticipantID: applicant.ID, Status: ApplicationPending})
		if err != nil {
			return fmt.Errorf("list applications: %w", err)
		}
		if len(pending) > 0 {
			return Conflict("you already applied to this team")
		}

		app := &Application{
			ID:            s.newID(),
			MarathonID:    marathonID,
			TeamID:        team.ID,
			ParticipantID: applicant.ID,
			Message:       message,
			Status:        ApplicationPending,
			CreatedAt:     s.now(),
		}
		if err := tx.InsertApplication(ctx, app); err != nil {
			return fmt.Errorf("insert application: %w", err)
		}
		s.log.Info("application created", zap.String("application", app.ID), zap.String("team", team.ID), zap.String("participant", applicant.ID))
		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelApplication withdraws one of the actor's pending applications.
func (s *Service) CancelApplication(ctx context.Context, actor Actor, marathonID, applicationID string) (*Application, error) {
	var out *Application
	err := s.store.InTx(ctx, func(tx Tx) error {
		me, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		app, err := tx.GetApplication(ctx, applicationID)
		if err != nil || app.ParticipantID != me.ID {
			return describeMissing(orNotFound(err), "application")
		}
		if app.Status != ApplicationPending {
			return Conflict("application is already %s", app.Status)
		}
		now := s.now()
		app.Status = ApplicationCancelled
		app.ResolvedAt = &now
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		s.log.Info("application cancelled", zap.String("application", app.ID))
		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type ApplicationView struct {
	*Application
	Applicant *Participant `json:"applicant,omitempty"`
	TeamName  string       `json:"teamName,omitempty"`
}

// ListTeamApplications shows a team's applications, with the applicants'
// profiles, to its members.
func (s *Service) ListTeamApplications(ctx context.Context, actor Actor, teamID string, status ApplicationStatus) ([]ApplicationView, error) {
	var out []ApplicationView
	err := s.store.View(ctx, func(tx Tx) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return describeMissing(err, "team")
		}
		if _, err := memberOf(ctx, tx, team, actor); err != nil {
			return err
		}
		apps, err := tx.ListApplications(ctx, ApplicationFilter{TeamID: team.ID, Status: status})
		if err != nil {
			return fmt.Errorf("list applications: %w", err)
		}
		out = make([]ApplicationView, 0, len(apps))
		for _, a := range apps {
			v := ApplicationView{Application: a, TeamName: team.Name}
			applicant, err := tx.GetParticipant(ctx, a.ParticipantID)
			switch {
			case err == nil:
				v.Applicant = applicant
			case !IsNotFound(err):
				return fmt.Errorf("get applicant: %w", err)
			}
			out = append(out, v)
		}
		slices.Reverse(out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListMyApplications lists the actor's applications in the marathon.
func (s *Service) ListMyApplications(ctx context.Context, actor Actor, marathonID string, status ApplicationStatus) ([]ApplicationView, error) {
	var out []ApplicationView
	err := s.store.View(ctx, func(tx Tx) error {
		me, err := participantIn(ctx, tx, marathonID, actor)
		if err != nil {
			return err
		}
		apps, err := tx.ListApplications(ctx, ApplicationFilter{ParticipantID: me.ID, Status: status})
		if err != nil {
			return fmt.Errorf("list applications: %w", err)
		}
		out = make([]ApplicationView, 0, len(apps))
		for _, a := range apps {
			v := ApplicationView{Application: a}
			if team, err := tx.GetTeam(ctx, a.TeamID); err == nil {
				v.TeamName = team.Name
			} else if !IsNotFound(err) {
				return fmt.Errorf("get team: %w", err)
			}
			out = append(out, v)
		}
		slices.Reverse(out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
