// Package redis keeps tracked orders in Redis hashes and applies quote
// decisions atomically with a Lua script.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"repairtrack/pkg/tracking"
)

// decideScript moves a quote out of the awaiting state exactly once.
// KEYS[1] = order hash key
// ARGV[1] = status required for the transition
// ARGV[2] = status to set
// ARGV[3] = decision time, unix seconds
var decideScript = goredis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status ~= ARGV[1] then
    return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[2], "decided_at", ARGV[3])
return 1
`)

const keyPrefix = "tracking:"

// Store implements tracking.Store on top of Redis.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

// New returns a Store using client. Orders minted through the store expire
// after ttl; zero keeps them forever.
func New(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl, now: time.Now}
}

func key(token tracking.Token) string {
	return keyPrefix + string(token)
}

// Mint stores snapshot under a fresh random token awaiting a decision.
func (s *Store) Mint(ctx context.Context, snapshot json.RawMessage) (tracking.Token, error) {
	token := tracking.Token(uuid.NewString())
	if err := s.Put(ctx, token, snapshot, tracking.QuoteAwaitingDecision); err != nil {
		return "", err
	}
	return token, nil
}

// Put stores snapshot under token with the given quote status.
func (s *Store) Put(ctx context.Context, token tracking.Token, snapshot json.RawMessage, status tracking.QuoteStatus) error {
	k := key(token)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, k, "snapshot", string(snapshot), "status", string(status))
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", k, err)
	}
	return nil
}

// Lookup returns the snapshot for token with its current quote status, or nil.
func (s *Store) Lookup(ctx context.Context, token tracking.Token) (json.RawMessage, error) {
	vals, err := s.client.HMGet(ctx, key(token), "snapshot", "status").Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup: %w", err)
	}
	snap, ok := vals[0].(string)
	if !ok {
		return nil, nil
	}
	status, _ := vals[1].(string)
	return tracking.WithQuoteStatus(json.RawMessage(snap), tracking.QuoteStatus(status))
}

// ApproveQuote approves the quote if it is awaiting a decision.
func (s *Store) ApproveQuote(ctx context.Context, token tracking.Token) (bool, error) {
	return s.decide(ctx, token, tracking.ActionApprove)
}

// RejectQuote rejects the quote if it is awaiting a decision.
func (s *Store) RejectQuote(ctx context.Context, token tracking.Token) (bool, error) {
	return s.decide(ctx, token, tracking.ActionReject)
}

func (s *Store) decide(ctx context.Context, token tracking.Token, action tracking.Action) (bool, error) {
	n, err := decideScript.Run(ctx, s.client, []string{key(token)},
		string(tracking.QuoteAwaitingDecision),
		string(tracking.StatusFor(action)),
		strconv.FormatInt(s.now().Unix(), 10),
	).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("redis %s: %w", action.Procedure(), err)
	}
	return n == 1, nil
}
