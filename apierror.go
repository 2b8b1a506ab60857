package goCtrl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a structured controller error parsed from an RFC-7807-style
// response body. Title is optional; an empty Title means the body carried
// none. RequestKey, when present, correlates the failure with server-side
// logs.
type APIError struct {
	Errors     []string
	Type       string
	Title      string
	StatusCode int
	Instance   string
	RequestKey string
}

// Error synthesizes a message from the title when present, else from the
// error list.
func (e *APIError) Error() string {
	if e == nil {
		return "controller request failed"
	}
	if e.Title != "" {
		return fmt.Sprintf("controller request failed (%d): %s", e.StatusCode, e.Title)
	}
	if len(e.Errors) > 0 {
		return fmt.Sprintf("controller request failed (%d): %s", e.StatusCode, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("controller request failed (%d)", e.StatusCode)
}

// RawAPIError retains a failed response whose body did not match the
// structured error shape.
type RawAPIError struct {
	StatusCode int
	Instance   string
	Body       string
}

func (e *RawAPIError) Error() string {
	if e == nil {
		return "controller request failed"
	}
	return fmt.Sprintf("controller request failed (%d) at %s", e.StatusCode, e.Instance)
}

type apiErrorBody struct {
	Errors     []string `json:"errors"`
	Type       string   `json:"type"`
	Title      *string  `json:"title"`
	StatusCode int      `json:"statusCode"`
	Instance   string   `json:"instance"`
	RequestKey string   `json:"requestKey"`
}

// translateAPIError turns a failed response into an *APIError when the body
// matches the structured shape, else into a *RawAPIError. statusCode comes
// from the transport and always overrides any statusCode inside the body;
// instance defaults to the request path when the body carries none.
func translateAPIError(statusCode int, body []byte, path string) error {
	var parsed apiErrorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && structuredErrorShape(parsed) {
		out := &APIError{
			Errors:     parsed.Errors,
			Type:       parsed.Type,
			StatusCode: parsed.StatusCode,
			Instance:   parsed.Instance,
			RequestKey: parsed.RequestKey,
		}
		if parsed.Title != nil {
			out.Title = *parsed.Title
		}
		if statusCode != 0 {
			out.StatusCode = statusCode
		}
		if out.Instance == "" {
			out.Instance = path
		}
		return out
	}
	return &RawAPIError{
		StatusCode: statusCode,
		Instance:   path,
		Body:       string(body),
	}
}

// structuredErrorShape reports whether the decoded body looks like the
// controller's error contract rather than arbitrary JSON.
func structuredErrorShape(b apiErrorBody) bool {
	return len(b.Errors) > 0 || b.Type != "" || b.StatusCode != 0
}
