package campaign

import (
	"fmt"
	"time"
)

// ValidationError is a locally-detected precondition failure: bad spec
// input, missing CSV columns, an empty selector result, a failed start
// preflight, or a failed lead-list import.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ExtractionError reports that an expected field (id, status) was absent
// from an otherwise-successful API response.
type ExtractionError struct {
	Msg string
}

func (e *ExtractionError) Error() string { return e.Msg }

func extractionErrorf(format string, args ...interface{}) *ExtractionError {
	return &ExtractionError{Msg: fmt.Sprintf(format, args...)}
}

// LeadListTimeoutError reports that a lead list did not finish processing
// within the polling budget. Distinct from a "failed" status reported by
// the API.
type LeadListTimeoutError struct {
	LeadListID int
	Timeout    time.Duration
}

func (e *LeadListTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for lead list %d to finish processing",
		e.Timeout, e.LeadListID)
}

// WorkflowError wraps the terminating error of a campaign-creation
// workflow together with everything known at the point of failure, so a
// caller can report "got this far, then this failed".
type WorkflowError struct {
	Err        error
	CampaignID int
	Steps      []WorkflowStepResult
}

func (e *WorkflowError) Error() string { return e.Err.Error() }

func (e *WorkflowError) Unwrap() error { return e.Err }
