package bison

import (
	"encoding/json"
	"fmt"
)

// NetworkError indicates the request never produced an HTTP response:
// connection failures, DNS errors, timeouts.
type NetworkError struct {
	Msg string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError indicates the API rejected our credentials (401 or 403).
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed (%d): set EMAILBISON_API_TOKEN or config api_token", e.StatusCode)
}

// APIError is any other remote rejection (status >= 400). Rate limiting
// (429) is an APIError with RetryAfter populated.
type APIError struct {
	Msg        string
	StatusCode int
	RetryAfter string
	Details    Envelope
}

func (e *APIError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("API error (%d)", e.StatusCode)
	}
	if e.RetryAfter != "" {
		msg += " Retry-After: " + e.RetryAfter
	}
	return msg
}

// FormatDetails renders the parsed error body for human-readable output.
func (e *APIError) FormatDetails() string {
	if e.Details == nil {
		return ""
	}
	data, err := json.MarshalIndent(e.Details, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", map[string]interface{}(e.Details))
	}
	return string(data)
}

// IsRateLimit reports whether this error came from a 429 response.
func (e *APIError) IsRateLimit() bool { return e.StatusCode == 429 }
