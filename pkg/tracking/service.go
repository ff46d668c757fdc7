package tracking

import (
	"context"
	"encoding/json"
	"fmt"
)

// Service turns store outcomes into the tracking error taxonomy. Every call
// reaches the store at most once and never retries.
type Service struct {
	store Store
}

// NewService returns a Service backed by store. It panics if store is nil.
func NewService(store Store) *Service {
	if store == nil {
		panic("tracking.NewService: nil store")
	}
	return &Service{store: store}
}

// Snapshot returns the order snapshot the store exposes for token.
func (s *Service) Snapshot(ctx context.Context, token Token) (json.RawMessage, error) {
	token = token.Normalize()
	if token == "" {
		return nil, ErrTokenRequired
	}

	snap, err := s.store.Lookup(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if IsEmpty(snap) {
		return nil, ErrOrderNotFound
	}
	return snap, nil
}

// Decide applies action to the quote identified by token.
func (s *Service) Decide(ctx context.Context, token Token, action Action) error {
	token = token.Normalize()
	if token == "" {
		return ErrTokenRequired
	}

	var (
		ok  bool
		err error
	)
	switch action {
	case ActionApprove:
		ok, err = s.store.ApproveQuote(ctx, token)
	case ActionReject:
		ok, err = s.store.RejectQuote(ctx, token)
	default:
		return ErrUnknownAction
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecisionFailed, action.Procedure(), err)
	}
	if !ok {
		return ErrNotPending
	}
	return nil
}
