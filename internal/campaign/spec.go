// Package campaign turns declarative campaign specs into provisioned
// EmailBison campaigns: spec validation, CSV batch planning, lead-list
// polling, and the create/configure/attach/start workflow.
package campaign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ignite/emailbison-cli/internal/bison"
)

// CampaignType is the remote campaign kind.
type CampaignType string

const (
	TypeOutbound      CampaignType = "outbound"
	TypeReplyFollowup CampaignType = "reply_followup"
)

// CampaignSettings maps to PATCH /api/campaigns/{id}/update. All fields
// are optional; nil fields are omitted from the payload.
type CampaignSettings struct {
	Name              *string `json:"name,omitempty"`
	MaxEmailsPerDay   *int    `json:"max_emails_per_day,omitempty"`
	MaxNewLeadsPerDay *int    `json:"max_new_leads_per_day,omitempty"`

	PlainText          *bool `json:"plain_text,omitempty"`
	OpenTracking       *bool `json:"open_tracking,omitempty"`
	ReputationBuilding *bool `json:"reputation_building,omitempty"`

	CanUnsubscribe  *bool   `json:"can_unsubscribe,omitempty"`
	UnsubscribeText *string `json:"unsubscribe_text,omitempty"`

	IncludeAutoRepliesInStats *bool `json:"include_auto_replies_in_stats,omitempty"`
}

// IsZero reports whether no setting was provided at all.
func (s *CampaignSettings) IsZero() bool {
	return s == nil || *s == CampaignSettings{}
}

var clockTimeRegex = regexp.MustCompile(`^\d{2}:\d{2}$`)

// CampaignSchedule maps to POST /api/campaigns/{id}/schedule.
type CampaignSchedule struct {
	Monday    bool `json:"monday"`
	Tuesday   bool `json:"tuesday"`
	Wednesday bool `json:"wednesday"`
	Thursday  bool `json:"thursday"`
	Friday    bool `json:"friday"`
	Saturday  bool `json:"saturday"`
	Sunday    bool `json:"sunday"`

	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`

	SaveAsTemplate bool `json:"save_as_template"`
}

// Validate checks the schedule's time window and timezone.
func (s *CampaignSchedule) Validate() error {
	if !clockTimeRegex.MatchString(s.StartTime) {
		return validationErrorf("schedule start_time must be HH:MM, got %q", s.StartTime)
	}
	if !clockTimeRegex.MatchString(s.EndTime) {
		return validationErrorf("schedule end_time must be HH:MM, got %q", s.EndTime)
	}
	if s.Timezone == "" {
		return &ValidationError{Msg: "schedule timezone is required"}
	}
	return nil
}

// SequenceStep is one scheduled email within a campaign's sequence.
type SequenceStep struct {
	EmailSubject          string   `json:"email_subject"`
	EmailSubjectVariables []string `json:"email_subject_variables,omitempty"`

	Order      *int   `json:"order,omitempty"`
	EmailBody  string `json:"email_body"`
	WaitInDays int    `json:"wait_in_days"`

	Variant           *bool `json:"variant,omitempty"`
	VariantFromStep   *int  `json:"variant_from_step,omitempty"`
	VariantFromStepID *int  `json:"variant_from_step_id,omitempty"`

	ThreadReply *bool `json:"thread_reply,omitempty"`
}

// Validate checks one sequence step.
func (s *SequenceStep) Validate() error {
	if s.EmailSubject == "" {
		return &ValidationError{Msg: "sequence step email_subject is required"}
	}
	if s.EmailBody == "" {
		return &ValidationError{Msg: "sequence step email_body is required"}
	}
	if s.WaitInDays < 0 {
		return validationErrorf("sequence step wait_in_days must be >= 0, got %d", s.WaitInDays)
	}
	if s.VariantFromStep != nil && s.VariantFromStepID != nil {
		return &ValidationError{Msg: "use only one of variant_from_step or variant_from_step_id"}
	}
	return nil
}

// SequenceSpec is a named list of sequence steps.
type SequenceSpec struct {
	Title         string         `json:"title"`
	SequenceSteps []SequenceStep `json:"sequence_steps"`
}

// Validate checks the sequence and each of its steps.
func (s *SequenceSpec) Validate() error {
	if s.Title == "" {
		return &ValidationError{Msg: "sequence title is required"}
	}
	if len(s.SequenceSteps) == 0 {
		return &ValidationError{Msg: "sequence must contain at least one step"}
	}
	for i := range s.SequenceSteps {
		if err := s.SequenceSteps[i].Validate(); err != nil {
			return fmt.Errorf("sequence step %d: %w", i+1, err)
		}
	}
	return nil
}

// Payload renders the sequence as the v1.1 sequence-steps request body.
func (s *SequenceSpec) Payload() map[string]interface{} {
	return map[string]interface{}{
		"title":          s.Title,
		"sequence_steps": s.SequenceSteps,
	}
}

// SequenceUpdateStep is a sequence step in an update request; existing
// steps carry their id.
type SequenceUpdateStep struct {
	ID *int `json:"id,omitempty"`
	SequenceStep
}

// SequenceUpdateSpec maps to PUT /api/campaigns/v1.1/sequence-steps/{id}.
type SequenceUpdateSpec struct {
	Title         string               `json:"title"`
	SequenceSteps []SequenceUpdateStep `json:"sequence_steps"`
}

// Validate checks the update spec and each of its steps.
func (s *SequenceUpdateSpec) Validate() error {
	if s.Title == "" {
		return &ValidationError{Msg: "sequence title is required"}
	}
	if len(s.SequenceSteps) == 0 {
		return &ValidationError{Msg: "sequence must contain at least one step"}
	}
	for i := range s.SequenceSteps {
		if err := s.SequenceSteps[i].Validate(); err != nil {
			return fmt.Errorf("sequence step %d: %w", i+1, err)
		}
	}
	return nil
}

// Payload renders the update as the v1.1 request body.
func (s *SequenceUpdateSpec) Payload() map[string]interface{} {
	return map[string]interface{}{
		"title":          s.Title,
		"sequence_steps": s.SequenceSteps,
	}
}

// LeadsSpec references leads to attach, by exactly one of an existing
// lead-list id or an explicit list of lead ids.
type LeadsSpec struct {
	LeadListID           *int  `json:"lead_list_id,omitempty"`
	LeadIDs              []int `json:"lead_ids,omitempty"`
	AllowParallelSending bool  `json:"allow_parallel_sending"`
}

// Validate enforces the lead_list_id / lead_ids mutual exclusivity.
func (l *LeadsSpec) Validate() error {
	if l.LeadListID != nil && len(l.LeadIDs) > 0 {
		return &ValidationError{Msg: "use only one of lead_list_id or lead_ids"}
	}
	return nil
}

// SenderEmailSelector is a declarative filter that resolves to a list of
// sender-email accounts at workflow time, instead of naming ids
// explicitly. Resolution is deterministic: candidates are sorted
// ascending by id before truncation to Limit.
type SenderEmailSelector struct {
	Search         string `json:"search,omitempty"`
	TagIDs         []int  `json:"tag_ids,omitempty"`
	ExcludedTagIDs []int  `json:"excluded_tag_ids,omitempty"`
	WithoutTags    *bool  `json:"without_tags,omitempty"`
	Status         string `json:"status,omitempty"`
	Limit          int    `json:"limit"`
}

// Validate checks the selector's limit.
func (s *SenderEmailSelector) Validate() error {
	if s.Limit < 1 {
		return validationErrorf("sender_emails limit must be >= 1, got %d", s.Limit)
	}
	return nil
}

// CampaignCreateSpec is the complete declarative intent for one campaign.
// It orchestrates multiple EmailBison endpoints: create, update, schedule,
// sequence-steps, attach-sender-emails, and attach-leads.
type CampaignCreateSpec struct {
	Name string       `json:"name"`
	Type CampaignType `json:"type,omitempty"`

	Settings *CampaignSettings `json:"settings,omitempty"`
	Schedule *CampaignSchedule `json:"schedule,omitempty"`
	Sequence *SequenceSpec     `json:"sequence,omitempty"`

	// Attach sender email accounts by explicit id, or resolve them with a
	// selector. Mutually exclusive.
	SenderEmailIDs []int                `json:"sender_email_ids,omitempty"`
	SenderEmails   *SenderEmailSelector `json:"sender_emails,omitempty"`

	Leads *LeadsSpec `json:"leads,omitempty"`

	Start bool `json:"start,omitempty"`
}

// Validate checks the whole spec, applying the outbound default type.
func (s *CampaignCreateSpec) Validate() error {
	if s.Name == "" {
		return &ValidationError{Msg: "campaign name is required"}
	}
	if s.Type == "" {
		s.Type = TypeOutbound
	}
	if s.Type != TypeOutbound && s.Type != TypeReplyFollowup {
		return validationErrorf("campaign type must be outbound or reply_followup, got %q", s.Type)
	}
	if len(s.SenderEmailIDs) > 0 && s.SenderEmails != nil {
		return &ValidationError{Msg: "use only one of sender_email_ids or sender_emails"}
	}
	if s.Schedule != nil {
		if err := s.Schedule.Validate(); err != nil {
			return err
		}
	}
	if s.Sequence != nil {
		if err := s.Sequence.Validate(); err != nil {
			return err
		}
	}
	if s.SenderEmails != nil {
		if err := s.SenderEmails.Validate(); err != nil {
			return err
		}
	}
	if s.Leads != nil {
		if err := s.Leads.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParseCreateSpec parses and validates a JSON workflow-spec document.
// Unknown fields are rejected so typos in spec files fail loudly.
func ParseCreateSpec(data []byte) (*CampaignCreateSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var spec CampaignCreateSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, validationErrorf("invalid campaign spec: %v", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// WorkflowStepResult is the audit record of one HTTP call made during
// orchestration. Steps are recorded for every call, including failed
// ones; StatusCode 0 means no response was received.
type WorkflowStepResult struct {
	Name       string `json:"name"`
	Method     string `json:"method"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// CreateCampaignResult is the terminal outcome of a single-campaign
// workflow.
type CreateCampaignResult struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`

	SenderEmailIDs  []int `json:"sender_email_ids,omitempty"`
	SequenceID      int   `json:"sequence_id,omitempty"`
	SequenceStepIDs []int `json:"sequence_step_ids,omitempty"`

	Started     bool   `json:"started"`
	StartStatus string `json:"start_status,omitempty"`

	Steps []WorkflowStepResult `json:"steps"`
	Raw   bison.Envelope       `json:"raw,omitempty"`
}
