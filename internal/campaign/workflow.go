package campaign

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/emailbison-cli/internal/bison"
	"github.com/ignite/emailbison-cli/internal/pkg/logger"
)

// WorkflowOptions tunes one workflow run.
type WorkflowOptions struct {
	// ForceStart skips the preflight checks when starting.
	ForceStart bool
}

// workflowRun accumulates per-run state: the audit trail and whatever
// identifiers are known so far, so failures can carry full context.
type workflowRun struct {
	client     *bison.Client
	campaignID int
	steps      []WorkflowStepResult
}

// record appends one audit entry. Called for every sub-call the workflow
// makes, including calls that failed: a zero status code marks a call
// that never produced a response.
func (r *workflowRun) record(name string, dbg bison.DebugInfo) {
	r.steps = append(r.steps, WorkflowStepResult{
		Name:       name,
		Method:     dbg.Method,
		URL:        dbg.URL,
		StatusCode: dbg.StatusCode,
		RequestID:  dbg.RequestID,
	})
}

// fail wraps the terminating error with everything known so far.
func (r *workflowRun) fail(err error) error {
	return &WorkflowError{Err: err, CampaignID: r.campaignID, Steps: r.steps}
}

// RunCreateWorkflow turns one CampaignCreateSpec into a provisioned (and
// optionally started) campaign. Steps run in strict order and any failure
// aborts the workflow; no rollback of partially-created remote state is
// attempted — the half-built campaign is left in place for inspection.
func RunCreateWorkflow(ctx context.Context, client *bison.Client, spec *CampaignCreateSpec, opts WorkflowOptions) (*CreateCampaignResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	run := &workflowRun{client: client}

	createdRaw, dbg, err := client.CreateCampaign(ctx, spec.Name, string(spec.Type))
	run.record("campaign.create", dbg)
	if err != nil {
		return nil, run.fail(err)
	}
	campaignID, ok := createdRaw.ID()
	if !ok {
		return nil, run.fail(extractionErrorf("could not extract campaign id from create response"))
	}
	run.campaignID = campaignID
	logger.Info("campaign created", "campaign_id", campaignID, "name", spec.Name)

	if !spec.Settings.IsZero() {
		_, dbg, err := client.UpdateCampaignSettings(ctx, campaignID, spec.Settings)
		run.record("campaign.update_settings", dbg)
		if err != nil {
			return nil, run.fail(err)
		}
	}

	if spec.Schedule != nil {
		_, dbg, err := client.CreateCampaignSchedule(ctx, campaignID, spec.Schedule)
		run.record("campaign.schedule", dbg)
		if err != nil {
			return nil, run.fail(err)
		}
	}

	sequenceID := 0
	var sequenceStepIDs []int
	if spec.Sequence != nil {
		seqRaw, dbg, err := client.CreateSequenceSteps(ctx, campaignID, spec.Sequence.Payload())
		run.record("campaign.sequence.create", dbg)
		if err != nil {
			return nil, run.fail(err)
		}
		// Best effort: older deployments omit these fields.
		sequenceID, sequenceStepIDs = extractSequenceInfo(seqRaw)
	}

	senderIDs, err := resolveSenderEmailIDs(ctx, run, spec)
	if err != nil {
		return nil, run.fail(err)
	}

	var attachedSenderIDs []int
	if len(senderIDs) > 0 {
		_, dbg, err := client.AttachSenderEmails(ctx, campaignID, senderIDs)
		run.record("campaign.attach_sender_emails", dbg)
		if err != nil {
			return nil, run.fail(err)
		}
		attachedSenderIDs = senderIDs
	}

	if spec.Leads != nil {
		switch {
		case spec.Leads.LeadListID != nil:
			_, dbg, err := client.AttachLeadList(ctx, campaignID, *spec.Leads.LeadListID, spec.Leads.AllowParallelSending)
			run.record("campaign.attach_lead_list", dbg)
			if err != nil {
				return nil, run.fail(err)
			}
		case len(spec.Leads.LeadIDs) > 0:
			_, dbg, err := client.AttachLeads(ctx, campaignID, spec.Leads.LeadIDs, spec.Leads.AllowParallelSending)
			run.record("campaign.attach_leads", dbg)
			if err != nil {
				return nil, run.fail(err)
			}
		}
	}

	started := false
	startStatus := ""
	if spec.Start {
		startStatus, err = startCampaign(ctx, run, campaignID, opts.ForceStart)
		if err != nil {
			return nil, run.fail(err)
		}
		started = true
	}

	status, _ := createdRaw.Status()
	return &CreateCampaignResult{
		ID:              campaignID,
		Name:            spec.Name,
		Status:          status,
		SenderEmailIDs:  attachedSenderIDs,
		SequenceID:      sequenceID,
		SequenceStepIDs: sequenceStepIDs,
		Started:         started,
		StartStatus:     startStatus,
		Steps:           run.steps,
		Raw:             createdRaw,
	}, nil
}

// Start runs the preflight checks against an existing campaign and, when
// they pass (or force is set), resumes it. Returns the campaign status
// observed after the resume call, plus the audit trail of calls made.
func Start(ctx context.Context, client *bison.Client, campaignID int, force bool) (string, []WorkflowStepResult, error) {
	run := &workflowRun{client: client, campaignID: campaignID}
	status, err := startCampaign(ctx, run, campaignID, force)
	if err != nil {
		return "", run.steps, run.fail(err)
	}
	return status, run.steps, nil
}

// resolveSenderEmailIDs decides which sender-email accounts to attach:
// explicit ids verbatim, or the selector resolved against the live
// account list. Returns nil when the spec names neither.
func resolveSenderEmailIDs(ctx context.Context, run *workflowRun, spec *CampaignCreateSpec) ([]int, error) {
	if len(spec.SenderEmailIDs) > 0 {
		return spec.SenderEmailIDs, nil
	}
	selector := spec.SenderEmails
	if selector == nil {
		return nil, nil
	}

	raw, dbg, err := run.client.ListSenderEmails(ctx, bison.SenderEmailFilter{
		Search:         selector.Search,
		TagIDs:         selector.TagIDs,
		ExcludedTagIDs: selector.ExcludedTagIDs,
		WithoutTags:    selector.WithoutTags,
	})
	run.record("sender_emails.list", dbg)
	if err != nil {
		return nil, err
	}

	var candidateIDs []int
	for _, item := range raw.DataList() {
		row, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := bison.CoerceInt(row["id"])
		if !ok {
			continue
		}
		if selector.Status != "" && fmt.Sprintf("%v", row["status"]) != selector.Status {
			continue
		}
		candidateIDs = append(candidateIDs, id)
	}

	sort.Ints(candidateIDs)
	if len(candidateIDs) > selector.Limit {
		candidateIDs = candidateIDs[:selector.Limit]
	}
	if len(candidateIDs) == 0 {
		return nil, &ValidationError{Msg: "no sender emails matched sender_emails selector; " +
			"try `emailbison sender-emails list` to inspect available accounts"}
	}
	return candidateIDs, nil
}

// startCampaign runs the preflight checks and issues the resume call.
// All missing conditions are collected before refusing, so the operator
// sees the full list at once.
func startCampaign(ctx context.Context, run *workflowRun, campaignID int, force bool) (string, error) {
	var missing []string

	detailsRaw, dbg, err := run.client.CampaignDetails(ctx, campaignID)
	run.record("campaign.details", dbg)
	if err != nil {
		return "", err
	}
	totalLeads := 0
	if data := detailsRaw.Data(); data != nil {
		if n, ok := bison.CoerceInt(data["total_leads"]); ok {
			totalLeads = n
		}
	}
	if totalLeads == 0 {
		missing = append(missing, "no leads attached")
	}

	sendersRaw, dbg, err := run.client.GetCampaignSenderEmails(ctx, campaignID)
	run.record("campaign.sender_emails", dbg)
	if err != nil {
		return "", err
	}
	if len(sendersRaw.DataList()) == 0 {
		missing = append(missing, "no sender emails attached")
	}

	seqRaw, dbg, err := run.client.GetSequenceSteps(ctx, campaignID)
	run.record("campaign.sequence.get", dbg)
	if err != nil {
		return "", err
	}
	if !hasSequenceSteps(seqRaw) {
		missing = append(missing, "no sequence steps")
	}

	if len(missing) > 0 && !force {
		return "", validationErrorf("refusing to start campaign (preflight failed): %s",
			strings.Join(missing, ", "))
	}

	_, dbg, err = run.client.ResumeCampaign(ctx, campaignID)
	run.record("campaign.resume", dbg)
	if err != nil {
		return "", err
	}

	afterRaw, dbg, err := run.client.CampaignDetails(ctx, campaignID)
	run.record("campaign.details_after_start", dbg)
	if err != nil {
		return "", err
	}
	status, _ := afterRaw.Status()
	return status, nil
}

func hasSequenceSteps(env bison.Envelope) bool {
	data := env.Data()
	if data == nil {
		return false
	}
	steps, ok := data["sequence_steps"].([]interface{})
	return ok && len(steps) > 0
}

// extractSequenceInfo pulls the created sequence id and step ids out of
// the sequence-steps response, tolerating their absence.
func extractSequenceInfo(env bison.Envelope) (int, []int) {
	data := env.Data()
	if data == nil {
		return 0, nil
	}
	sequenceID, _ := bison.CoerceInt(data["id"])
	var stepIDs []int
	if steps, ok := data["sequence_steps"].([]interface{}); ok {
		for _, item := range steps {
			row, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if id, ok := bison.CoerceInt(row["id"]); ok {
				stepIDs = append(stepIDs, id)
			}
		}
	}
	return sequenceID, stepIDs
}
