package campaign

import (
	"context"
	"errors"

	"github.com/ignite/emailbison-cli/internal/bison"
	"github.com/ignite/emailbison-cli/internal/pkg/logger"
)

// BatchOptions holds configuration shared by every campaign in a batch.
// Settings, schedule, and sequence apply to the whole batch, not per file.
type BatchOptions struct {
	Settings       *CampaignSettings
	Schedule       *CampaignSchedule
	Sequence       *SequenceSpec
	SenderEmailIDs []int
	Poller         Poller
}

// BatchFileResult records the outcome for one CSV file.
type BatchFileResult struct {
	CSV          string `json:"csv"`
	CampaignName string `json:"campaign_name"`
	LeadCount    int    `json:"lead_count"`
	OK           bool   `json:"ok"`

	CampaignID     int    `json:"campaign_id,omitempty"`
	LeadListID     int    `json:"lead_list_id,omitempty"`
	LeadListStatus string `json:"lead_list_status,omitempty"`

	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchSummary aggregates a batch run. LeadsLoaded sums over succeeded
// files only.
type BatchSummary struct {
	TotalProcessed int `json:"total_processed"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	LeadsLoaded    int `json:"leads_loaded"`
}

// BatchResult is the aggregate outcome of one batch run.
type BatchResult struct {
	Summary BatchSummary      `json:"summary"`
	Files   []BatchFileResult `json:"files"`
}

// DryRunResult previews a batch from its plans alone, with no network
// activity.
func DryRunResult(plans []BatchFilePlan) *BatchResult {
	result := &BatchResult{
		Summary: BatchSummary{
			TotalProcessed: len(plans),
			Succeeded:      len(plans),
		},
	}
	for _, plan := range plans {
		result.Summary.LeadsLoaded += plan.LeadCount
		result.Files = append(result.Files, BatchFileResult{
			CSV:          plan.Path,
			CampaignName: plan.CampaignName,
			LeadCount:    plan.LeadCount,
			OK:           true,
		})
	}
	return result
}

// RunBatch applies the upload → poll → create → configure → attach
// workflow to every plan, strictly sequentially. The anticipated failure
// kinds (API, auth, network, validation, extraction, poll timeout) are
// recorded against their plan and processing continues; anything else
// aborts the batch.
func RunBatch(ctx context.Context, client *bison.Client, plans []BatchFilePlan, opts BatchOptions) (*BatchResult, error) {
	result := &BatchResult{}

	for _, plan := range plans {
		result.Summary.TotalProcessed++

		fileResult, err := runBatchPlan(ctx, client, plan, opts)
		if err != nil {
			if !isAnticipatedFailure(err) {
				return nil, err
			}
			result.Summary.Failed++
			result.Files = append(result.Files, BatchFileResult{
				CSV:          plan.Path,
				CampaignName: plan.CampaignName,
				LeadCount:    plan.LeadCount,
				OK:           false,
				ErrorType:    failureTypeName(err),
				Error:        err.Error(),
			})
			logger.Warn("batch file failed",
				"csv", plan.Path,
				"error_type", failureTypeName(err),
				"error", err.Error(),
			)
			continue
		}

		result.Summary.Succeeded++
		result.Summary.LeadsLoaded += plan.LeadCount
		result.Files = append(result.Files, *fileResult)
		logger.Info("batch file done",
			"csv", plan.Path,
			"campaign_id", fileResult.CampaignID,
			"lead_list_id", fileResult.LeadListID,
		)
	}

	return result, nil
}

// runBatchPlan drives one plan end to end: upload the CSV, wait for the
// resulting lead list to process, create and configure the campaign, and
// attach the list.
func runBatchPlan(ctx context.Context, client *bison.Client, plan BatchFilePlan, opts BatchOptions) (*BatchFileResult, error) {
	uploadRaw, _, err := client.UploadLeadsCSV(ctx, plan.CampaignName, plan.Path, plan.ColumnsToMap)
	if err != nil {
		return nil, err
	}
	leadListID, initialStatus, err := extractLeadListInfo(uploadRaw)
	if err != nil {
		return nil, err
	}

	leadListStatus, err := opts.Poller.WaitForLeadList(ctx, client, leadListID, initialStatus)
	if err != nil {
		return nil, err
	}

	createdRaw, _, err := client.CreateCampaign(ctx, plan.CampaignName, string(TypeOutbound))
	if err != nil {
		return nil, err
	}
	campaignID, ok := createdRaw.ID()
	if !ok {
		return nil, extractionErrorf("could not extract campaign id from create response")
	}

	if !opts.Settings.IsZero() {
		if _, _, err := client.UpdateCampaignSettings(ctx, campaignID, opts.Settings); err != nil {
			return nil, err
		}
	}
	if opts.Schedule != nil {
		if _, _, err := client.CreateCampaignSchedule(ctx, campaignID, opts.Schedule); err != nil {
			return nil, err
		}
	}
	if opts.Sequence != nil {
		if _, _, err := client.CreateSequenceSteps(ctx, campaignID, opts.Sequence.Payload()); err != nil {
			return nil, err
		}
	}
	if len(opts.SenderEmailIDs) > 0 {
		if _, _, err := client.AttachSenderEmails(ctx, campaignID, opts.SenderEmailIDs); err != nil {
			return nil, err
		}
	}

	if _, _, err := client.AttachLeadList(ctx, campaignID, leadListID, false); err != nil {
		return nil, err
	}

	return &BatchFileResult{
		CSV:            plan.Path,
		CampaignName:   plan.CampaignName,
		LeadCount:      plan.LeadCount,
		OK:             true,
		CampaignID:     campaignID,
		LeadListID:     leadListID,
		LeadListStatus: leadListStatus,
	}, nil
}

// isAnticipatedFailure reports whether the error is one of the known
// operational failure kinds that should be isolated to its file.
// Anything else is treated as a defect and propagates.
func isAnticipatedFailure(err error) bool {
	var (
		apiErr        *bison.APIError
		authErr       *bison.AuthError
		netErr        *bison.NetworkError
		validationErr *ValidationError
		extractionErr *ExtractionError
		timeoutErr    *LeadListTimeoutError
	)
	return errors.As(err, &apiErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &netErr) ||
		errors.As(err, &validationErr) ||
		errors.As(err, &extractionErr) ||
		errors.As(err, &timeoutErr)
}

// failureTypeName names the failure kind for machine-readable results.
func failureTypeName(err error) string {
	var (
		apiErr        *bison.APIError
		authErr       *bison.AuthError
		netErr        *bison.NetworkError
		validationErr *ValidationError
		extractionErr *ExtractionError
		timeoutErr    *LeadListTimeoutError
	)
	switch {
	case errors.As(err, &authErr):
		return "AuthError"
	case errors.As(err, &netErr):
		return "NetworkError"
	case errors.As(err, &apiErr):
		return "APIError"
	case errors.As(err, &timeoutErr):
		return "LeadListTimeoutError"
	case errors.As(err, &validationErr):
		return "ValidationError"
	case errors.As(err, &extractionErr):
		return "ExtractionError"
	default:
		return "Error"
	}
}
