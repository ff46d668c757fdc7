// Package tracking defines the customer-facing order tracking domain: opaque
// tracking tokens, quote decisions and the contract of the external store that
// owns every order.
package tracking

import (
	"context"
	"encoding/json"
	"strings"
)

// Token is the opaque identifier handed to a customer for one order.
type Token string

// Normalize trims surrounding whitespace from the token.
func (t Token) Normalize() Token {
	return Token(strings.TrimSpace(string(t)))
}

// Action is a customer's decision on a pending quote.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Backend procedure names.
const (
	ProcLookup  = "get_order_by_tracking_token"
	ProcApprove = "approve_quote_by_token"
	ProcReject  = "reject_quote_by_token"
)

// ParseAction returns the Action named by s.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionApprove, ActionReject:
		return a, nil
	default:
		return "", ErrUnknownAction
	}
}

// Procedure returns the name of the backend procedure applying the action.
func (a Action) Procedure() string {
	if a == ActionReject {
		return ProcReject
	}
	return ProcApprove
}

// QuoteStatus is the decision state of an order's quote as kept by the
// bundled backends.
type QuoteStatus string

const (
	QuoteAwaitingDecision QuoteStatus = "awaiting_decision"
	QuoteApproved         QuoteStatus = "approved"
	QuoteRejected         QuoteStatus = "rejected"
)

// StatusFor returns the status an order moves to once the action is applied.
func StatusFor(a Action) QuoteStatus {
	if a == ActionReject {
		return QuoteRejected
	}
	return QuoteApproved
}

// Store is the external store holding orders and quotes.
//
// Lookup returns a nil snapshot (or JSON null) when no order matches the token.
// ApproveQuote and RejectQuote return false when the order does not exist or is
// not awaiting a decision; the store alone decides that.
type Store interface {
	Lookup(ctx context.Context, token Token) (json.RawMessage, error)
	ApproveQuote(ctx context.Context, token Token) (bool, error)
	RejectQuote(ctx context.Context, token Token) (bool, error)
}

// IsEmpty reports whether a snapshot carries no order.
func IsEmpty(snapshot json.RawMessage) bool {
	s := strings.TrimSpace(string(snapshot))
	return s == "" || s == "null"
}

// WithQuoteStatus sets the quote_status field of an object snapshot.
func WithQuoteStatus(snapshot json.RawMessage, status QuoteStatus) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if !IsEmpty(snapshot) {
		if err := json.Unmarshal(snapshot, &fields); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	fields["quote_status"] = raw
	return json.Marshal(fields)
}
