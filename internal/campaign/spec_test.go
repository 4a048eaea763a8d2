package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSpecValidate(t *testing.T) {
	spec := &CampaignCreateSpec{Name: "Q3 Outreach"}
	require.NoError(t, spec.Validate())
	assert.Equal(t, TypeOutbound, spec.Type, "type should default to outbound")
}

func TestCreateSpecMissingName(t *testing.T) {
	spec := &CampaignCreateSpec{}
	err := spec.Validate()
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "name is required")
}

func TestCreateSpecBadType(t *testing.T) {
	spec := &CampaignCreateSpec{Name: "x", Type: "inbound"}
	err := spec.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbound or reply_followup")
}

func TestCreateSpecSenderEmailsMutuallyExclusive(t *testing.T) {
	spec := &CampaignCreateSpec{
		Name:           "x",
		SenderEmailIDs: []int{1},
		SenderEmails:   &SenderEmailSelector{Limit: 1},
	}
	err := spec.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one of sender_email_ids or sender_emails")
}

func TestLeadsSpecMutuallyExclusive(t *testing.T) {
	id := 5
	leads := &LeadsSpec{LeadListID: &id, LeadIDs: []int{1, 2}}
	err := leads.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one of lead_list_id or lead_ids")
}

func TestScheduleValidate(t *testing.T) {
	schedule := &CampaignSchedule{StartTime: "09:00", EndTime: "17:30", Timezone: "America/Chicago"}
	require.NoError(t, schedule.Validate())

	schedule.StartTime = "9am"
	require.Error(t, schedule.Validate())

	schedule.StartTime = "09:00"
	schedule.Timezone = ""
	err := schedule.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone is required")
}

func TestSequenceValidate(t *testing.T) {
	seq := &SequenceSpec{Title: "Intro"}
	err := seq.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one step")

	seq.SequenceSteps = []SequenceStep{{EmailSubject: "Hi", EmailBody: "Hello", WaitInDays: 0}}
	require.NoError(t, seq.Validate())

	seq.SequenceSteps[0].WaitInDays = -1
	err = seq.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequence step 1")
}

func TestSequenceStepVariantExclusive(t *testing.T) {
	from := 1
	fromID := 2
	step := &SequenceStep{
		EmailSubject:    "Hi",
		EmailBody:       "Hello",
		VariantFromStep: &from, VariantFromStepID: &fromID,
	}
	err := step.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant_from_step")
}

func TestSelectorLimit(t *testing.T) {
	selector := &SenderEmailSelector{Limit: 0}
	err := selector.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be >= 1")
}

func TestParseCreateSpecRejectsUnknownFields(t *testing.T) {
	_, err := ParseCreateSpec([]byte(`{"name":"x","campagin_type":"outbound"}`))
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestParseCreateSpecFull(t *testing.T) {
	spec, err := ParseCreateSpec([]byte(`{
		"name": "District A",
		"schedule": {
			"monday": true, "tuesday": true,
			"start_time": "09:00", "end_time": "17:00",
			"timezone": "America/New_York"
		},
		"sequence": {
			"title": "Default",
			"sequence_steps": [
				{"email_subject": "Hello", "email_body": "Hi there", "wait_in_days": 0}
			]
		},
		"sender_emails": {"status": "Connected", "limit": 2},
		"leads": {"lead_list_id": 99},
		"start": true
	}`))
	require.NoError(t, err)
	assert.Equal(t, "District A", spec.Name)
	assert.True(t, spec.Start)
	require.NotNil(t, spec.Leads.LeadListID)
	assert.Equal(t, 99, *spec.Leads.LeadListID)
	assert.Equal(t, 2, spec.SenderEmails.Limit)
}

func TestSettingsIsZero(t *testing.T) {
	var settings *CampaignSettings
	assert.True(t, settings.IsZero())
	assert.True(t, (&CampaignSettings{}).IsZero())

	max := 50
	assert.False(t, (&CampaignSettings{MaxEmailsPerDay: &max}).IsZero())
}
