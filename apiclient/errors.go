package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/bastion-hub/internal/errors"
)

// DefaultErrorMessage is used when the response body carries no usable message.
const DefaultErrorMessage = "An error occurred"

// APIError is a non-2xx response from the API
type APIError struct {
	Message string
	Status  int
	// Details is the field error map when the body has one, otherwise the
	// decoded body itself. Nil for bodies that are not JSON.
	Details any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// FieldErrors flattens Details into field -> messages, skipping anything
// that is not a string or a list of strings.
func (e *APIError) FieldErrors() map[string][]string {
	m, ok := e.Details.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(m))
	for field, v := range m {
		switch val := v.(type) {
		case string:
			out[field] = []string{val}
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					out[field] = append(out[field], s)
				}
			}
		}
	}
	return out
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the API
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// newAPIError builds the error for a failed response. Bodies that are not
// JSON objects give the default message and never a decode error.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Message: DefaultErrorMessage, Status: status}

	var data any
	if len(body) == 0 || json.Unmarshal(body, &data) != nil {
		return apiErr
	}
	apiErr.Details = data

	obj, ok := data.(map[string]any)
	if !ok {
		return apiErr
	}
	envelope, _ := obj["error"].(map[string]any)

	switch {
	case nonEmptyString(obj["detail"]) != "":
		apiErr.Message = nonEmptyString(obj["detail"])
	case nonEmptyString(obj["message"]) != "":
		apiErr.Message = nonEmptyString(obj["message"])
	case envelope != nil && nonEmptyString(envelope["message"]) != "":
		apiErr.Message = nonEmptyString(envelope["message"])
	}

	switch {
	case obj["errors"] != nil:
		apiErr.Details = obj["errors"]
	case envelope != nil && envelope["details"] != nil:
		apiErr.Details = envelope["details"]
	}
	return apiErr
}

func nonEmptyString(v any) string {
	s, _ := v.(string)
	return s
}
