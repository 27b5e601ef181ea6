package searchapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is returned for every non-2xx response, and for 2xx start responses
// that carry a backend signal instead of a session.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       []byte

	// Parsed from the body when it is JSON.
	Detail  []json.RawMessage
	Signal  string
	Message string
}

func (e *APIError) Error() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s returned status %d", e.Endpoint, e.StatusCode)
	switch {
	case e.Signal != "":
		_, _ = fmt.Fprintf(&sb, ": signal %s", e.Signal)
	case e.Message != "":
		_, _ = fmt.Fprintf(&sb, ": %s", e.Message)
	case len(e.Detail) > 0:
		_, _ = fmt.Fprintf(&sb, ": %d validation errors", len(e.Detail))
	case len(e.Body) > 0:
		_, _ = fmt.Fprintf(&sb, ": %s", truncate(string(e.Body), 200))
	}
	return sb.String()
}

// HasSignal reports whether the backend answered with the given domain signal.
func (e *APIError) HasSignal(signal string) bool {
	return e != nil && e.Signal == signal
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Signal string          `json:"signal"`
	Error  string          `json:"error"`
}

func newAPIError(endpoint string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Endpoint:   endpoint,
		StatusCode: status,
		Body:       body,
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}
	apiErr.Signal = parsed.Signal
	apiErr.Message = parsed.Error
	if len(parsed.Detail) > 0 {
		// detail is a list for validation failures, but some handlers send a plain string
		var list []json.RawMessage
		if err := json.Unmarshal(parsed.Detail, &list); err == nil {
			apiErr.Detail = list
		} else {
			apiErr.Detail = []json.RawMessage{parsed.Detail}
		}
	}
	return apiErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
