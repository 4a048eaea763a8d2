package campaign

import (
	"context"
	"strings"
	"time"

	"github.com/ignite/emailbison-cli/internal/bison"
	"github.com/ignite/emailbison-cli/internal/pkg/logger"
)

// Lead-list processing is asynchronous on the EmailBison side. These are
// the coarse status buckets the API has been observed to report; anything
// not pending and not failed is treated as terminal success, so new
// statuses don't wedge the loop.
var (
	leadListPendingStatuses = map[string]struct{}{
		"unprocessed": {},
		"processing":  {},
		"pending":     {},
		"queued":      {},
	}
	leadListFailedStatuses = map[string]struct{}{
		"failed": {},
		"error":  {},
	}
)

const (
	// DefaultPollInterval is the fixed delay between lead-list polls.
	DefaultPollInterval = 2 * time.Second
	// DefaultPollTimeout is the overall wall-clock budget for one
	// lead-list to finish processing.
	DefaultPollTimeout = 300 * time.Second
)

// Poller waits for an asynchronously-processed lead list to reach a
// terminal state. The zero value uses the default interval and timeout.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (p Poller) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return DefaultPollInterval
}

func (p Poller) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultPollTimeout
}

// WaitForLeadList blocks until the lead list leaves its pending state,
// returning the terminal status string. An already-failed initial status
// fails immediately; an already-terminal one returns without any poll.
// A missing status on a poll attempt counts as still pending. Exceeding
// the budget yields a LeadListTimeoutError, distinct from an API-reported
// failure.
func (p Poller) WaitForLeadList(ctx context.Context, client *bison.Client, leadListID int, initialStatus string) (string, error) {
	if initialStatus != "" {
		if isLeadListFailed(initialStatus) {
			return "", validationErrorf("lead list %d failed immediately: %s", leadListID, initialStatus)
		}
		if !isLeadListPending(initialStatus) {
			return initialStatus, nil
		}
	}

	deadline := time.Now().Add(p.timeout())
	for !time.Now().After(deadline) {
		env, _, err := client.GetLeadList(ctx, leadListID)
		if err != nil {
			return "", err
		}

		status := extractLeadListStatus(env)
		if status != "" {
			if isLeadListFailed(status) {
				return "", validationErrorf("lead list %d processing failed: %s", leadListID, status)
			}
			if !isLeadListPending(status) {
				return status, nil
			}
		}

		logger.Debug("lead list still processing",
			"lead_list_id", leadListID,
			"status", status,
		)
		if err := sleepCtx(ctx, p.interval()); err != nil {
			return "", err
		}
	}

	return "", &LeadListTimeoutError{LeadListID: leadListID, Timeout: p.timeout()}
}

func isLeadListPending(status string) bool {
	_, ok := leadListPendingStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

func isLeadListFailed(status string) bool {
	_, ok := leadListFailedStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// extractLeadListInfo pulls the lead-list id and initial status out of a
// bulk-upload response. The response shape varies between deployments, so
// a prioritized set of locations is searched: data, data.lead_list,
// top-level lead_list, then the root object.
func extractLeadListInfo(env bison.Envelope) (int, string, error) {
	candidates := leadListCandidates(env)

	leadListID := 0
	found := false
	status := ""
	for _, candidate := range candidates {
		if !found {
			if id, ok := bison.CoerceInt(candidate["lead_list_id"]); ok {
				leadListID, found = id, true
			}
		}
		if !found {
			if id, ok := bison.CoerceInt(candidate["id"]); ok {
				leadListID, found = id, true
			}
		}
		if status == "" {
			if s, ok := candidate["status"].(string); ok {
				status = s
			}
		}
		if found && status != "" {
			break
		}
	}

	if !found {
		return 0, "", extractionErrorf("could not extract lead list id from upload response")
	}
	return leadListID, status, nil
}

// extractLeadListStatus pulls the current status out of a lead-list
// lookup response, searching the same prioritized locations.
func extractLeadListStatus(env bison.Envelope) string {
	for _, candidate := range leadListCandidates(env) {
		if s, ok := candidate["status"].(string); ok {
			return s
		}
	}
	return ""
}

func leadListCandidates(env bison.Envelope) []map[string]interface{} {
	var candidates []map[string]interface{}
	if data := env.Data(); data != nil {
		candidates = append(candidates, data)
		if leadList, ok := data["lead_list"].(map[string]interface{}); ok {
			candidates = append(candidates, leadList)
		}
	}
	if leadList, ok := env["lead_list"].(map[string]interface{}); ok {
		candidates = append(candidates, leadList)
	}
	candidates = append(candidates, env)
	return candidates
}
