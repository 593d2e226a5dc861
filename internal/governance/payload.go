package governance

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

type RequestType string

const (
	RequestInvite               RequestType = "invite"
	RequestOpenPosition         RequestType = "open_position"
	RequestClosePosition        RequestType = "close_position"
	RequestKick                 RequestType = "kick"
	RequestUpdateSettings       RequestType = "update_settings"
	RequestAcceptApplication    RequestType = "accept_application"
	RequestRejectApplication    RequestType = "reject_application"
	RequestTransferLead         RequestType = "transfer_lead"
	RequestChangeDecisionSystem RequestType = "change_decision_system"
)

// RequestTypes lists every request kind a team can propose.
var RequestTypes = []RequestType{
	RequestInvite,
	RequestOpenPosition,
	RequestClosePosition,
	RequestKick,
	RequestUpdateSettings,
	RequestAcceptApplication,
	RequestRejectApplication,
	RequestTransferLead,
	RequestChangeDecisionSystem,
}

func (t RequestType) Valid() bool {
	for _, known := range RequestTypes {
		if t == known {
			return true
		}
	}
	return false
}

const (
	maxMessageLen     = 500
	maxNameLen        = 100
	maxDescriptionLen = 2000
	maxURLLen         = 500
)

// Payload is the typed body of a TeamRequest. Each request type has exactly
// one implementation, and only this package can add new ones.
type Payload interface {
	Type() RequestType
	validate() error
}

type InvitePayload struct {
	ParticipantID string `json:"participantId"`
	Message       string `json:"message,omitempty"`
}

func (InvitePayload) Type() RequestType { return RequestInvite }

func (p InvitePayload) validate() error {
	if strings.TrimSpace(p.ParticipantID) == "" {
		return Invalid("participantId is required")
	}
	return checkLen("message", p.Message, maxMessageLen)
}

type OpenPositionPayload struct {
	Role        string `json:"role"`
	Description string `json:"description,omitempty"`
}

func (OpenPositionPayload) Type() RequestType { return RequestOpenPosition }

func (p OpenPositionPayload) validate() error {
	if strings.TrimSpace(p.Role) == "" {
		return Invalid("role is required")
	}
	return checkLen("description", p.Description, maxMessageLen)
}

type ClosePositionPayload struct {
	PositionID string `json:"positionId"`
}

func (ClosePositionPayload) Type() RequestType { return RequestClosePosition }

func (p ClosePositionPayload) validate() error {
	return required("positionId", p.PositionID)
}

type KickPayload struct {
	MemberID string `json:"memberId"`
}

func (KickPayload) Type() RequestType { return RequestKick }

func (p KickPayload) validate() error {
	return required("memberId", p.MemberID)
}

// SettingsPatch carries the cosmetic team fields an update_settings request
// may change. Nil fields are left untouched.
type SettingsPatch struct {
	Name           *string         `json:"name,omitempty"`
	ManagementType *ManagementType `json:"managementType,omitempty"`
	Genre          *string         `json:"genre,omitempty"`
	Description    *string         `json:"description,omitempty"`
	PitchDoc       *string         `json:"pitchDoc,omitempty"`
	DesignDoc      *string         `json:"designDoc,omitempty"`
	ChatLink       *string         `json:"chatLink,omitempty"`
	GitLink        *string         `json:"gitLink,omitempty"`
}

func (p SettingsPatch) Empty() bool {
	return p.Name == nil && p.ManagementType == nil && p.Genre == nil && p.Description == nil &&
		p.PitchDoc == nil && p.DesignDoc == nil && p.ChatLink == nil && p.GitLink == nil
}

func (p SettingsPatch) apply(t *Team) {
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.ManagementType != nil {
		t.ManagementType = *p.ManagementType
	}
	if p.Genre != nil {
		t.Genre = *p.Genre
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.PitchDoc != nil {
		t.PitchDoc = *p.PitchDoc
	}
	if p.DesignDoc != nil {
		t.DesignDoc = *p.DesignDoc
	}
	if p.ChatLink != nil {
		t.ChatLink = *p.ChatLink
	}
	if p.GitLink != nil {
		t.GitLink = *p.GitLink
	}
}

func (p SettingsPatch) validate() error {
	if p.Name != nil {
		if err := checkName(*p.Name); err != nil {
			return err
		}
	}
	if p.ManagementType != nil && !p.ManagementType.Valid() {
		return Invalid("unknown management type %q", *p.ManagementType)
	}
	if p.Description != nil {
		if err := checkLen("description", *p.Description, maxDescriptionLen); err != nil {
			return err
		}
	}
	links := map[string]*string{
		"pitchDoc":  p.PitchDoc,
		"designDoc": p.DesignDoc,
		"chatLink":  p.ChatLink,
		"gitLink":   p.GitLink,
	}
	for field, v := range links {
		if v == nil {
			continue
		}
		if err := checkURL(field, *v); err != nil {
			return err
		}
	}
	return nil
}

type UpdateSettingsPayload struct {
	Changes SettingsPatch `json:"changes"`
}

func (UpdateSettingsPayload) Type() RequestType { return RequestUpdateSettings }

func (p UpdateSettingsPayload) validate() error {
	if p.Changes.Empty() {
		return Invalid("changes must set at least one field")
	}
	return p.Changes.validate()
}

type AcceptApplicationPayload struct {
	ApplicationID string `json:"applicationId"`
}

func (AcceptApplicationPayload) Type() RequestType { return RequestAcceptApplication }

func (p AcceptApplicationPayload) validate() error {
	return required("applicationId", p.ApplicationID)
}

type RejectApplicationPayload struct {
	ApplicationID string `json:"applicationId"`
}

func (RejectApplicationPayload) Type() RequestType { return RequestRejectApplication }

func (p RejectApplicationPayload) validate() error {
	return required("applicationId", p.ApplicationID)
}

type TransferLeadPayload struct {
	MemberID string `json:"memberId"`
}

func (TransferLeadPayload) Type() RequestType { return RequestTransferLead }

func (p TransferLeadPayload) validate() error {
	return required("memberId", p.MemberID)
}

// ChangeDecisionSystemPayload switches the team's authority model. LeaderID
// is required when switching to dictatorship and must be empty otherwise.
type ChangeDecisionSystemPayload struct {
	DecisionSystem DecisionSystem `json:"decisionSystem"`
	LeaderID       string         `json:"leaderId,omitempty"`
}

func (ChangeDecisionSystemPayload) Type() RequestType { return RequestChangeDecisionSystem }

func (p ChangeDecisionSystemPayload) validate() error {
	switch p.DecisionSystem {
	case Dictatorship:
		return required("leaderId", p.LeaderID)
	case Democracy:
		if p.LeaderID != "" {
			return Invalid("leaderId must be empty for democracy")
		}
		return nil
	default:
		return Invalid("unknown decision system %q", p.DecisionSystem)
	}
}

// DecodePayload builds the payload variant for t from its JSON body.
func DecodePayload(t RequestType, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case RequestInvite:
		p, err = decodeInto[InvitePayload](raw)
	case RequestOpenPosition:
		p, err = decodeInto[OpenPositionPayload](raw)
	case RequestClosePosition:
		p, err = decodeInto[ClosePositionPayload](raw)
	case RequestKick:
		p, err = decodeInto[KickPayload](raw)
	case RequestUpdateSettings:
		p, err = decodeInto[UpdateSettingsPayload](raw)
	case RequestAcceptApplication:
		p, err = decodeInto[AcceptApplicationPayload](raw)
	case RequestRejectApplication:
		p, err = decodeInto[RejectApplicationPayload](raw)
	case RequestTransferLead:
		p, err = decodeInto[TransferLeadPayload](raw)
	case RequestChangeDecisionSystem:
		p, err = decodeInto[ChangeDecisionSystemPayload](raw)
	default:
		return nil, Invalid("unknown request type %q", t)
	}
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParsePayload reads the "type" discriminator from a request body and
// decodes the matching variant.
func ParsePayload(raw []byte) (Payload, error) {
	var head struct {
		Type RequestType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &Error{Kind: KindValidation, Message: "malformed request body", Cause: err}
	}
	return DecodePayload(head.Type, raw)
}

// EncodePayload serialises a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload")
	}
	return json.Marshal(p)
}

// ValidatePayload runs the construction checks of a payload built in code.
func ValidatePayload(p Payload) error {
	if p == nil {
		return Invalid("payload is required")
	}
	return p.validate()
}

func decodeInto[T Payload](raw []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &Error{Kind: KindValidation, Message: "malformed payload", Cause: err}
	}
	return v, nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return Invalid("%s is required", field)
	}
	return nil
}

func checkLen(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return Invalid("%s exceeds %d characters", field, max)
	}
	return nil
}

func checkName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Invalid("name is required")
	}
	return checkLen("name", name, maxNameLen)
}

func checkURL(field, v string) error {
	if v == "" {
		return nil
	}
	if err := checkLen(field, v, maxURLLen); err != nil {
		return err
	}
	u, err := url.ParseRequestURI(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Invalid("%s must be an http(s) url", field)
	}
	return nil
}
