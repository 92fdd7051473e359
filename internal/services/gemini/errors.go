package gemini

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/socialchef/chefai/internal/failover"
)

// APIError is a failed generateContent call. The failover signal is decided here, from the
// HTTP status and the structured error body, so callers never inspect the message.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	signal     failover.Signal
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gemini: %s: %s", e.signal, e.Message)
	}
	return fmt.Sprintf("gemini: HTTP %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Signal implements failover.SignalError.
func (e *APIError) Signal() failover.Signal {
	return e.signal
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type   string `json:"@type"`
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

func (b *errorBody) hasReason(reason string) bool {
	for _, d := range b.Error.Details {
		if d.Reason == reason {
			return true
		}
	}
	return false
}

// hasDetailType reports whether any detail is of the given google.rpc type, for example
// "google.rpc.QuotaFailure".
func (b *errorBody) hasDetailType(rpcType string) bool {
	for _, d := range b.Error.Details {
		if strings.TrimPrefix(d.Type, "type.googleapis.com/") == rpcType {
			return true
		}
	}
	return false
}

func newStatusError(statusCode int, body *errorBody) *APIError {
	e := &APIError{
		StatusCode: statusCode,
		Status:     body.Error.Status,
		Message:    body.Error.Message,
	}
	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		if body.hasDetailType("google.rpc.QuotaFailure") {
			e.signal = failover.SignalQuotaExceeded
		} else {
			e.signal = failover.SignalRateLimited
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.signal = failover.SignalUnauthorized
	case statusCode == http.StatusBadRequest && body.hasReason("API_KEY_INVALID"):
		// Gemini reports a bad key as 400 INVALID_ARGUMENT.
		e.signal = failover.SignalUnauthorized
	case statusCode == http.StatusNotFound:
		e.signal = failover.SignalNotFound
	case statusCode == http.StatusBadRequest:
		e.signal = failover.SignalInvalidRequest
	case statusCode >= 500:
		e.signal = failover.SignalUnavailable
	default:
		e.signal = failover.SignalUnknown
	}
	return e
}

func newSafetyError(reason string) *APIError {
	return &APIError{Status: "BLOCKED", Message: "response blocked: " + reason, signal: failover.SignalSafetyBlocked}
}

func newEmptyResponseError(finishReason string) *APIError {
	msg := "response contained no text"
	if finishReason != "" {
		msg += " (finish reason " + finishReason + ")"
	}
	return &APIError{Message: msg, signal: failover.SignalEmptyResponse}
}

func newTransportError(err error) *APIError {
	return &APIError{Message: err.Error(), signal: failover.SignalUnavailable}
}
