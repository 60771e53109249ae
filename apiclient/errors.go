package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/issue-tracker-client/internal/errors"
)

// APIError is a non-2xx response. The body is kept verbatim so views can render
// field-level messages exactly as the backend produced them.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte
	Detail     string              // DRF "detail" message, when present
	Fields     map[string][]string // DRF field errors, when the body is a field map
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{
		StatusCode: status,
		Method:     method,
		Path:       path,
		Body:       body,
	}
	e.decodeBody()
	return e
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" && len(e.Fields) > 0 {
		msg = errors.FormatFields(e.Fields)
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unwrap maps the status onto the client error taxonomy
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return errors.ErrValidation
	case http.StatusUnauthorized:
		return errors.ErrUnauthorized
	case http.StatusForbidden:
		return errors.ErrForbidden
	case http.StatusNotFound:
		return errors.ErrNotFound
	default:
		return errors.ErrUnknownFailure
	}
}

// decodeBody understands the two DRF error shapes: {"detail": "..."} and
// {"field": ["msg", ...], "non_field_errors": [...]}. Anything else (HTML error
// pages, empty bodies) leaves Detail and Fields empty.
func (e *APIError) decodeBody() {
	if len(e.Body) == 0 {
		return
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(e.Body, &raw); err != nil {
		return
	}
	fields := make(map[string][]string)
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if k == "detail" {
				e.Detail = s
				continue
			}
			fields[k] = []string{s}
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			fields[k] = list
			continue
		}
		fields[k] = []string{strings.TrimSpace(string(v))}
	}
	if len(fields) > 0 {
		e.Fields = fields
	}
}

// StatusCode returns the HTTP status of err if it is (or wraps) an *APIError, else 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
