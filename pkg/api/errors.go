package api

import (
	"errors"
	"net/http"

	"repairtrack/pkg/tracking"
)

// Client-facing error messages. Internal detail is logged, never returned.
const (
	msgTokenRequired = "Token is required"
	msgInvalidToken  = "Invalid token"
	msgOrderNotFound = "Order not found"
	msgNotPending    = "Quote not found or already processed"
	msgUnknownAction = "Unknown action"
	msgInternal      = "Internal server error"
)

// errMalformedSnapshot marks a store payload that is not valid JSON.
var errMalformedSnapshot = errors.New("malformed snapshot")

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DecisionResponse is the body of a successful decision.
type DecisionResponse struct {
	Success bool            `json:"success"`
	Action  tracking.Action `json:"action"`
}

// classify maps err to the response status and message.
func classify(err error, action tracking.Action) (int, string) {
	switch {
	case errors.Is(err, tracking.ErrTokenRequired):
		return http.StatusBadRequest, msgTokenRequired

	case errors.Is(err, tracking.ErrUnknownAction):
		return http.StatusBadRequest, msgUnknownAction

	case errors.Is(err, tracking.ErrInvalidToken):
		return http.StatusNotFound, msgInvalidToken

	case errors.Is(err, tracking.ErrOrderNotFound):
		return http.StatusNotFound, msgOrderNotFound

	case errors.Is(err, tracking.ErrDecisionFailed):
		return http.StatusBadRequest, decisionMessage(action)

	case errors.Is(err, tracking.ErrNotPending):
		return http.StatusNotFound, msgNotPending

	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func decisionMessage(action tracking.Action) string {
	if action == tracking.ActionReject {
		return "Could not reject quote"
	}
	return "Could not approve quote"
}

// backendFailure reports whether err came from a failing store call, as
// opposed to a negative but well-formed answer.
func backendFailure(err error) bool {
	return errors.Is(err, tracking.ErrInvalidToken) || errors.Is(err, tracking.ErrDecisionFailed)
}
