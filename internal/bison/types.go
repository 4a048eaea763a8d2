package bison

import (
	"encoding/json"
	"strings"
)

// Envelope is a parsed API response body. EmailBison normally returns a
// JSON object with the payload under "data", but the shape varies between
// endpoint generations, so the raw mapping is preserved and callers pull
// what they need out of it.
type Envelope map[string]interface{}

// ParseEnvelope normalizes a raw response body into an Envelope.
// Non-object JSON bodies are wrapped under "data"; non-JSON bodies are
// wrapped under "text".
func ParseEnvelope(body []byte) Envelope {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Envelope{"text": string(body)}
	}
	if obj, ok := parsed.(map[string]interface{}); ok {
		return Envelope(obj)
	}
	return Envelope{"data": parsed}
}

// Data returns the "data" payload as an object, or nil.
func (e Envelope) Data() map[string]interface{} {
	obj, _ := e["data"].(map[string]interface{})
	return obj
}

// DataList returns the "data" payload as a list, or nil.
func (e Envelope) DataList() []interface{} {
	list, _ := e["data"].([]interface{})
	return list
}

// ID extracts data.id as an integer.
func (e Envelope) ID() (int, bool) {
	data := e.Data()
	if data == nil {
		return 0, false
	}
	return CoerceInt(data["id"])
}

// Status extracts data.status as a string.
func (e Envelope) Status() (string, bool) {
	data := e.Data()
	if data == nil {
		return "", false
	}
	s, ok := data["status"].(string)
	return s, ok
}

// CoerceInt converts JSON numbers and digit strings to an int. The API is
// not consistent about numeric id types across endpoints.
func CoerceInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return 0, false
			}
		}
		out := 0
		for _, r := range s {
			out = out*10 + int(r-'0')
		}
		return out, true
	default:
		return 0, false
	}
}

// DebugInfo summarizes one HTTP exchange for audit trails and --debug
// output. StatusCode is 0 when no response was received.
type DebugInfo struct {
	Method     string `json:"method"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}
