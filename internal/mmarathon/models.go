package mmarathon

import "kyri56xcaesar/marathon-proj/internal/governance"

type ReasonRequest struct {
	Reason string `json:"reason" form:"reason"`
}

type OrganizerRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
}

// participantListQuery binds ?available=true&role=..&technology=..; roles
// and technologies may repeat.
type participantListQuery struct {
	Available    bool     `form:"available"`
	Roles        []string `form:"role"`
	Technologies []string `form:"technology"`
}

func (q participantListQuery) toQuery() governance.ParticipantQuery {
	return governance.ParticipantQuery{
		Available:    q.Available,
		Roles:        q.Roles,
		Technologies: q.Technologies,
	}
}
