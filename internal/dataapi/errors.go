package dataapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/niveshya/leadops/internal/shared"
)

// APIError is a non-2xx response from the Data API.
type APIError struct {
	Status  int
	Title   string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("data api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("data api: %d %s", e.Status, e.Message)
}

// problemKinds pairs the problem titles written by httpx.StatusFor with their sentinels.
var problemKinds = map[string]error{
	"Duplicate":          shared.ErrDuplicateName,
	"Conflict":           shared.ErrConflict,
	"Invalid Permission": shared.ErrInvalidPermission,
	"Protected":          shared.ErrForbidden,
	"Forbidden":          shared.ErrUnauthorized,
	"Validation Failed":  shared.ErrValidation,
	"Not Found":          shared.ErrNotFound,
	"Unauthorized":       shared.ErrUnauthenticated,
}

// Unwrap maps the response onto the shared error taxonomy so callers can use errors.Is.
// The problem title decides when present; otherwise the status does.
func (e *APIError) Unwrap() error {
	if kind, ok := problemKinds[e.Title]; ok {
		return kind
	}
	switch e.Status {
	case http.StatusUnauthorized:
		return shared.ErrUnauthenticated
	case http.StatusForbidden:
		return shared.ErrUnauthorized
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusConflict:
		return shared.ErrConflict
	case http.StatusBadRequest:
		return shared.ErrValidation
	case http.StatusUnprocessableEntity:
		return shared.ErrValidation
	default:
		return nil
	}
}

// errorBody covers FastAPI-style {detail} and generic {message} payloads.
type errorBody struct {
	Title   string          `json:"title"`
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

func decodeError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	apiErr := &APIError{Status: res.StatusCode}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Title = eb.Title
		apiErr.Message = detailText(eb.Detail)
		if apiErr.Message == "" {
			apiErr.Message = eb.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// detailText accepts a string detail or a list of validation entries with msg fields.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(raw)
}
