// Package memory implements an in-memory tracking store.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"repairtrack/pkg/tracking"
)

type entry struct {
	snapshot json.RawMessage
	status   tracking.QuoteStatus
}

// Store provides an in-memory implementation of tracking.Store.
type Store struct {
	mu     sync.RWMutex
	orders map[tracking.Token]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{orders: make(map[tracking.Token]*entry)}
}

// Mint stores snapshot under a fresh random token awaiting a decision.
func (s *Store) Mint(snapshot json.RawMessage) tracking.Token {
	token := tracking.Token(uuid.NewString())
	s.Put(token, snapshot, tracking.QuoteAwaitingDecision)
	return token
}

// Put stores snapshot under token with the given quote status.
func (s *Store) Put(token tracking.Token, snapshot json.RawMessage, status tracking.QuoteStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[token] = &entry{snapshot: snapshot, status: status}
}

// Lookup returns the snapshot for token with its current quote status, or nil.
func (s *Store) Lookup(ctx context.Context, token tracking.Token) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.orders[token]
	if !ok {
		return nil, nil
	}
	return tracking.WithQuoteStatus(e.snapshot, e.status)
}

// ApproveQuote approves the quote if it is awaiting a decision.
func (s *Store) ApproveQuote(ctx context.Context, token tracking.Token) (bool, error) {
	return s.decide(token, tracking.ActionApprove), nil
}

// RejectQuote rejects the quote if it is awaiting a decision.
func (s *Store) RejectQuote(ctx context.Context, token tracking.Token) (bool, error) {
	return s.decide(token, tracking.ActionReject), nil
}

func (s *Store) decide(token tracking.Token, action tracking.Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.orders[token]
	if !ok || e.status != tracking.QuoteAwaitingDecision {
		return false
	}
	e.status = tracking.StatusFor(action)
	return true
}

// Status returns the quote status stored for token.
func (s *Store) Status(token tracking.Token) (tracking.QuoteStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.orders[token]
	if !ok {
		return "", false
	}
	return e.status, true
}
