package governance

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Majority is the number of same-side votes that settles a democratic
// request in a team of memberCount members.
func Majority(memberCount int) int {
	return memberCount/2 + 1
}

// Tally is the live vote count of a request, counting current members only.
type Tally struct {
	Approvals  int `json:"approvals"`
	Rejections int `json:"rejections"`
	Majority   int `json:"majority"`
}

func (s *Service) tally(ctx context.Context, tx Tx, team *Team, req *TeamRequest) (Tally, error) {
	members, err := tx.ListParticipants(ctx, ParticipantFilter{TeamID: team.ID})
	if err != nil {
		return Tally{}, fmt.Errorf("list members: %w", err)
	}
	current := make(map[string]struct{}, len(members))
	for _, m := range members {
		current[m.ID] = struct{}{}
	}

	t := Tally{Majority: Majority(team.MemberCount)}
	for _, v := range req.Votes {
		if _, ok := current[v.ParticipantID]; !ok {
			continue
		}
		switch v.Choice {
		case Approve:
			t.Approvals++
		case Reject:
			t.Rejections++
		}
	}
	return t, nil
}

// CreateTeamRequest stores a proposal of the actor's team. A dictatorship
// leader's own proposal is executed and approved on the spot.
func (s *Service) CreateTeamRequest(ctx context.Context, actor Actor, teamID string, payload Payload) (*TeamRequest, error) {
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	var out *TeamRequest
	err := s.store.InTx(ctx, func(tx Tx) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return describeMissing(err, "team")
		}
		author, err := memberOf(ctx, tx, team, actor)
		if err != nil {
			return err
		}
		if team.IsSuspended {
			return Conflict("team is suspended")
		}

		pending, err := tx.ListRequests(ctx, RequestFilter{TeamID: team.ID, Type: payload.Type(), Status: RequestPending})
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}
		if len(pending) > 0 {
			return Conflict("a %s request is already pending", payload.Type())
		}

		if err := s.checkProposal(ctx, tx, team, author, payload); err != nil {
			return err
		}

		req := &TeamRequest{
			ID:        s.newID(),
			TeamID:    team.ID,
			AuthorID:  author.ID,
			Type:      payload.Type(),
			Payload:   payload,
			Status:    RequestPending,
			Votes:     []Vote{},
			CreatedAt: s.now(),
		}
		if err := tx.InsertRequest(ctx, req); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		s.log.Info("team request created",
			zap.String("request", req.ID),
			zap.String("team", team.ID),
			zap.String("type", string(req.Type)),
			zap.String("author", author.ID),
		)

		if team.IsLeader(author.ID) {
			if err := s.approve(ctx, tx, team, req, author.ID); err != nil {
				return err
			}
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Vote records a democratic vote and settles the request once either side
// reaches a majority. A participant votes once per request.
func (s *Service) Vote(ctx context.Context, actor Actor, requestID string, choice Choice) (*TeamRequest, error) {
	if !choice.Valid() {
		return nil, Invalid("vote must be %q or %q", Approve, Reject)
	}

	var out *TeamRequest
	err := s.store.InTx(ctx, func(tx Tx) error {
		req, team, err := loadRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		voter, err := memberOf(ctx, tx, team, actor)
		if err != nil {
			return err
		}
		if team.DecisionSystem != Democracy {
			return Forbidden("voting is only available under democracy")
		}
		if req.Status != RequestPending {
			return Conflict("request is already %s", req.Status)
		}
		if _, voted := req.VoteOf(voter.ID); voted {
			return Conflict("you have already voted on this request")
		}

		req.Votes = append(req.Votes, Vote{ParticipantID: voter.ID, Choice: choice, VotedAt: s.now()})

		t, err := s.tally(ctx, tx, team, req)
		if err != nil {
			return err
		}
		s.log.Info("vote recorded",
			zap.String("request", req.ID),
			zap.String("participant", voter.ID),
			zap.String("vote", string(choice)),
			zap.Int("approvals", t.Approvals),
			zap.Int("rejections", t.Rejections),
			zap.Int("majority", t.Majority),
		)

		switch {
		case t.Approvals >= t.Majority:
			err = s.approve(ctx, tx, team, req, "")
		case t.Rejections >= t.Majority:
			err = s.reject(ctx, tx, req, "")
		default:
			err = tx.UpdateRequest(ctx, req)
		}
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Decide is the dictatorship leader's one-shot verdict on a pending request.
func (s *Service) Decide(ctx context.Context, actor Actor, requestID string, choice Choice) (*TeamRequest, error) {
	if !choice.Valid() {
		return nil, Invalid("decision must be %q or %q", Approve, Reject)
	}

	var out *TeamRequest
	err := s.store.InTx(ctx, func(tx Tx) error {
		req, team, err := loadRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		leader, err := memberOf(ctx, tx, team, actor)
		if err != nil {
			return err
		}
		if !team.IsLeader(leader.ID) {
			return Forbidden("only the team leader can decide")
		}
		if req.Status != RequestPending {
			return Conflict("request is already %s", req.Status)
		}

		if choice == Approve {
			err = s.approve(ctx, tx, team, req, leader.ID)
		} else {
			err = s.reject(ctx, tx, req, leader.ID)
		}
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadRequest(ctx context.Context, tx Tx, requestID string) (*TeamRequest, *Team, error) {
	req, err := tx.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, describeMissing(err, "request")
	}
	team, err := tx.GetTeam(ctx, req.TeamID)
	if err != nil {
		return nil, nil, describeMissing(err, "team")
	}
	return req, team, nil
}

// approve marks req approved and runs its effect in the same unit.
func (s *Service) approve(ctx context.Context, tx Tx, team *Team, req *TeamRequest, decidedBy string) error {
	now := s.now()
	req.Status = RequestApproved
	req.ResolvedAt = &now
	if decidedBy != "" {
		req.DecidedBy = decidedBy
		req.DecidedAt = &now
	}
	if err := tx.UpdateRequest(ctx, req); err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	s.log.Info("team request approved",
		zap.String("request", req.ID),
		zap.String("type", string(req.Type)),
		zap.String("decidedBy", decidedBy),
	)
	return s.resolve(ctx, tx, team, req)
}

func (s *Service) reject(ctx context.Context, tx Tx, req *TeamRequest, decidedBy string) error {
	now := s.now()
	req.Status = RequestRejected
	req.ResolvedAt = &now
	if decidedBy != "" {
		req.DecidedBy = decidedBy
		req.DecidedAt = &now
	}
	if err := tx.UpdateRequest(ctx, req); err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	s.log.Info("team request rejected",
		zap.String("request", req.ID),
		zap.String("type", string(req.Type)),
		zap.String("decidedBy", decidedBy),
	)
	return nil
}

// RequestView is a request as shown to a team member.
type RequestView struct {
	*TeamRequest
	Tally
	MyVote Choice `json:"myVote,omitempty"`
}

// ListTeamRequests returns the team's requests, newest first, optionally
// narrowed to one status. Only members can see them.
func (s *Service) ListTeamRequests(ctx context.Context, actor Actor, teamID string, status RequestStatus) ([]RequestView, error) {
	var out []RequestView
	err := s.store.View(ctx, func(tx Tx) error {
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return describeMissing(err, "team")
		}
		me, err := memberOf(ctx, tx, team, actor)
		if err != nil {
			return err
		}
		reqs, err := tx.ListRequests(ctx, RequestFilter{TeamID: team.ID, Status: status})
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}
		out = make([]RequestView, 0, len(reqs))
		for _, r := range reqs {
			t, err := s.tally(ctx, tx, team, r)
			if err != nil {
				return err
			}
			v := RequestView{TeamRequest: r, Tally: t}
			if mine, ok := r.VoteOf(me.ID); ok {
				v.MyVote = mine.Choice
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
