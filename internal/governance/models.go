package governance

import "time"

type DecisionSystem string

const (
	Dictatorship DecisionSystem = "dictatorship"
	Democracy    DecisionSystem = "democracy"
)

func (d DecisionSystem) Valid() bool {
	return d == Dictatorship || d == Democracy
}

type ManagementType string

const (
	ManagementScrum     ManagementType = "scrum"
	ManagementKanban    ManagementType = "kanban"
	ManagementAgile     ManagementType = "agile"
	ManagementWaterfall ManagementType = "waterfall"
	ManagementFree      ManagementType = "free"
)

func (m ManagementType) Valid() bool {
	switch m {
	case ManagementScrum, ManagementKanban, ManagementAgile, ManagementWaterfall, ManagementFree:
		return true
	}
	return false
}

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationCancelled ApplicationStatus = "cancelled"
)

type InvitationStatus string

const (
	InvitationPending     InvitationStatus = "pending"
	InvitationAccepted    InvitationStatus = "accepted"
	InvitationDeclined    InvitationStatus = "declined"
	InvitationInvalidated InvitationStatus = "invalidated"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Choice is a vote or a leader decision on a pending request.
type Choice string

const (
	Approve Choice = "approve"
	Reject  Choice = "reject"
)

func (c Choice) Valid() bool {
	return c == Approve || c == Reject
}

type Marathon struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Topic       string    `json:"topic"`
	Description string    `json:"description"`
	MinTeamSize int       `json:"minTeamSize"`
	MaxTeamSize int       `json:"maxTeamSize"`
	CreatorID   string    `json:"creatorId"`
	Organizers  []string  `json:"organizers"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsOrganizer reports whether the user may moderate the marathon.
// The creator always counts as an organizer.
func (m *Marathon) IsOrganizer(userID string) bool {
	if userID == "" {
		return false
	}
	if m.CreatorID == userID {
		return true
	}
	for _, id := range m.Organizers {
		if id == userID {
			return true
		}
	}
	return false
}

type Participant struct {
	ID            string    `json:"id"`
	MarathonID    string    `json:"marathonId"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	Nickname      string    `json:"nickname"`
	Roles         []string  `json:"roles"`
	Technologies  []string  `json:"technologies"`
	Description   string    `json:"description"`
	TeamID        string    `json:"teamId,omitempty"`
	IsBanned      bool      `json:"isBanned"`
	BanReason     string    `json:"banReason,omitempty"`
	IsSuspended   bool      `json:"isSuspended"`
	SuspendReason string    `json:"suspendReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (p *Participant) HasTeam() bool { return p.TeamID != "" }

func (p *Participant) Active() bool { return !p.IsBanned && !p.IsSuspended }

type Team struct {
	ID             string         `json:"id"`
	MarathonID     string         `json:"marathonId"`
	Name           string         `json:"name"`
	LeaderID       string         `json:"leaderId,omitempty"`
	ManagementType ManagementType `json:"managementType"`
	DecisionSystem DecisionSystem `json:"decisionSystem"`
	Genre          string         `json:"genre,omitempty"`
	Description    string         `json:"description,omitempty"`
	PitchDoc       string         `json:"pitchDoc,omitempty"`
	DesignDoc      string         `json:"designDoc,omitempty"`
	ChatLink       string         `json:"chatLink,omitempty"`
	GitLink        string         `json:"gitLink,omitempty"`
	IsSuspended    bool           `json:"isSuspended"`
	SuspendReason  string         `json:"suspendReason,omitempty"`
	MemberCount    int            `json:"memberCount"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (t *Team) IsLeader(participantID string) bool {
	return t.DecisionSystem == Dictatorship && t.LeaderID != "" && t.LeaderID == participantID
}

type OpenPosition struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"teamId"`
	MarathonID  string    `json:"marathonId"`
	Role        string    `json:"role"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Application struct {
	ID            string            `json:"id"`
	MarathonID    string            `json:"marathonId"`
	TeamID        string            `json:"teamId"`
	ParticipantID string            `json:"participantId"`
	Message       string            `json:"message,omitempty"`
	Status        ApplicationStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	ResolvedAt    *time.Time        `json:"resolvedAt,omitempty"`
}

type Invitation struct {
	ID            string           `json:"id"`
	MarathonID    string           `json:"marathonId"`
	TeamID        string           `json:"teamId"`
	ParticipantID string           `json:"participantId"`
	RequestID     string           `json:"requestId"`
	Message       string           `json:"message,omitempty"`
	Status        InvitationStatus `json:"status"`
	CreatedAt     time.Time        `json:"createdAt"`
	ResolvedAt    *time.Time       `json:"resolvedAt,omitempty"`
}

type Vote struct {
	ParticipantID string    `json:"participantId"`
	Choice        Choice    `json:"vote"`
	VotedAt       time.Time `json:"votedAt"`
}

type TeamRequest struct {
	ID         string        `json:"id"`
	TeamID     string        `json:"teamId"`
	AuthorID   string        `json:"authorId"`
	Type       RequestType   `json:"type"`
	Payload    Payload       `json:"data"`
	Status     RequestStatus `json:"status"`
	Votes      []Vote        `json:"votes"`
	DecidedBy  string        `json:"decidedBy,omitempty"`
	DecidedAt  *time.Time    `json:"decidedAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	ResolvedAt *time.Time    `json:"resolvedAt,omitempty"`
	// ExecutedAt is set once the effect has been applied; later runs skip it.
	ExecutedAt *time.Time `json:"executedAt,omitempty"`
}

// VoteOf returns the vote the participant cast on the request, if any.
func (r *TeamRequest) VoteOf(participantID string) (Vote, bool) {
	for _, v := range r.Votes {
		if v.ParticipantID == participantID {
			return v, true
		}
	}
	return Vote{}, false
}

// Actor is the authenticated caller as resolved by the web layer.
type Actor struct {
	UserID string
	Admin  bool
}

// DepartureResult reports what a member departure did to the team.
type DepartureResult struct {
	TeamID              string `json:"teamId,omitempty"`
	RemovedFromTeam     bool   `json:"removedFromTeam"`
	TeamDeleted         bool   `json:"teamDeleted"`
	TeamBecameDemocracy bool   `json:"teamBecameDemocracy"`
}
