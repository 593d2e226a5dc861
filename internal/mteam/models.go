package mteam

import "kyri56xcaesar/marathon-proj/internal/governance"

type ApplyRequest struct {
	Message string `json:"message" form:"message" binding:"max=500"`
}

type VoteRequest struct {
	Vote governance.Choice `json:"vote" form:"vote" binding:"required,oneof=approve reject"`
}

type DecideRequest struct {
	Decision governance.Choice `json:"decision" form:"decision" binding:"required,oneof=approve reject"`
}

// teamListQuery binds the team list filters from the query string.
type teamListQuery struct {
	ManagementType   string `form:"managementType"`
	DecisionSystem   string `form:"decisionSystem"`
	Genre            string `form:"genre"`
	HasOpenPositions bool   `form:"hasOpenPositions"`
	Role             string `form:"role"`
}

func (q teamListQuery) toQuery() governance.TeamQuery {
	return governance.TeamQuery{
		ManagementType:   governance.ManagementType(q.ManagementType),
		DecisionSystem:   governance.DecisionSystem(q.DecisionSystem),
		Genre:            q.Genre,
		HasOpenPositions: q.HasOpenPositions,
		PositionRole:     q.Role,
	}
}
