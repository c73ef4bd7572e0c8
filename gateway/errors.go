package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindValidation
	KindAuthorization
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

const NetworkErrorMessage = "Network error or server unavailable"

// APIError is returned for every failed backend call. Message is safe to
// show to the user.
type APIError struct {
	Status  int
	Message string
	Kind    ErrorKind
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (%d): %s: %v", e.Kind, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) UserMessage() string {
	return e.Message
}

func (e *APIError) Unwrap() []error {
	base := types.ErrClientRequestFailed
	if e.Kind == KindAuthorization {
		base = types.ErrUnauthorized
	}

	if e.Err != nil {
		return []error{base, e.Err}
	}
	return []error{base}
}

type errorBody struct {
	Message    interface{} `json:"message"`
	Error      string      `json:"error"`
	StatusCode int         `json:"statusCode"`
}

func newNetworkError(err error) *APIError {
	return &APIError{
		Status:  0,
		Message: NetworkErrorMessage,
		Kind:    KindNetwork,
		Err:     err,
	}
}

// newStatusError builds an APIError from a non-2xx response. The backend
// reports validation failures as a list of messages.
func newStatusError(status int, body []byte) *APIError {
	apiErr := &APIError{
		Status: status,
		Kind:   kindForStatus(status),
	}

	var parsed errorBody
	if len(body) > 0 && utils.Unmarshal(body, &parsed) == nil {
		apiErr.Message = messageOf(parsed.Message)
		if apiErr.Message == "" {
			apiErr.Message = parsed.Error
		}
	}

	return apiErr
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuthorization
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

func messageOf(raw interface{}) string {
	switch message := raw.(type) {
	case string:
		return message
	case []interface{}:
		parts := make([]string, 0, len(message))
		for _, part := range message {
			parts = append(parts, fmt.Sprint(part))
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// withFallback fills an empty message so callers always have something to show.
func withFallback(err error, fallback string) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return err
	}
	if apiErr.Message == "" {
		apiErr.Message = fallback
	}
	return apiErr
}

func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
