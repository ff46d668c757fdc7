package tracking

import (
	"context"
	"errors"
)

var (
	// ErrTokenRequired indicates the request carried no tracking token.
	ErrTokenRequired = errors.New("tracking token required")
	// ErrInvalidToken indicates the store failed to look the token up.
	ErrInvalidToken = errors.New("invalid tracking token")
	// ErrOrderNotFound indicates the lookup succeeded but matched no order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDecisionFailed indicates the store failed while applying a decision.
	ErrDecisionFailed = errors.New("quote decision failed")
	// ErrNotPending indicates there was no quote awaiting a decision, either
	// because the order does not exist or because it was already decided.
	ErrNotPending = errors.New("quote not found or already processed")
	// ErrUnknownAction indicates an action other than approve or reject.
	ErrUnknownAction = errors.New("unknown action")
)

// Kind returns a stable label for err, suitable for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrTokenRequired):
		return "token_required"

	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"

	case errors.Is(err, context.Canceled):
		return "canceled"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"

	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"

	case errors.Is(err, ErrDecisionFailed):
		return "decision_failed"

	case errors.Is(err, ErrNotPending):
		return "not_pending"

	default:
		return "internal"
	}
}
