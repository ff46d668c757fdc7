package tracking_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairtrack/pkg/tracking"
	"repairtrack/pkg/tracking/memory"
)

type stubStore struct {
	snapshot json.RawMessage
	decided  bool
	err      error

	lookups  int
	approves int
	rejects  int
}

func (s *stubStore) Lookup(context.Context, tracking.Token) (json.RawMessage, error) {
	s.lookups++
	return s.snapshot, s.err
}

func (s *stubStore) ApproveQuote(context.Context, tracking.Token) (bool, error) {
	s.approves++
	return s.decided, s.err
}

func (s *stubStore) RejectQuote(context.Context, tracking.Token) (bool, error) {
	s.rejects++
	return s.decided, s.err
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("pq: invalid input syntax for type uuid")

	tests := []struct {
		name    string
		store   *stubStore
		token   tracking.Token
		wantErr error
		calls   int
	}{
		{name: "found", store: &stubStore{snapshot: json.RawMessage(`{"id":1}`)}, token: "tok", calls: 1},
		{name: "missing_token", store: &stubStore{}, token: "  ", wantErr: tracking.ErrTokenRequired},
		{name: "backend_error", store: &stubStore{err: backendErr}, token: "tok", wantErr: tracking.ErrInvalidToken, calls: 1},
		{name: "nil_result", store: &stubStore{}, token: "tok", wantErr: tracking.ErrOrderNotFound, calls: 1},
		{name: "json_null", store: &stubStore{snapshot: json.RawMessage("null")}, token: "tok", wantErr: tracking.ErrOrderNotFound, calls: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := tracking.NewService(tt.store)
			snap, err := svc.Snapshot(context.Background(), tt.token)

			assert.Equal(t, tt.calls, tt.store.lookups)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, snap)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, string(tt.store.snapshot), string(snap))
		})
	}
}

func TestSnapshotKeepsBackendCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	svc := tracking.NewService(&stubStore{err: cause})

	_, err := svc.Snapshot(context.Background(), "tok")
	require.ErrorIs(t, err, tracking.ErrInvalidToken)
	assert.ErrorIs(t, err, cause)
}

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		store        *stubStore
		action       tracking.Action
		wantErr      error
		wantApproves int
		wantRejects  int
	}{
		{name: "approve", store: &stubStore{decided: true}, action: tracking.ActionApprove, wantApproves: 1},
		{name: "reject", store: &stubStore{decided: true}, action: tracking.ActionReject, wantRejects: 1},
		{name: "not_pending", store: &stubStore{}, action: tracking.ActionApprove, wantErr: tracking.ErrNotPending, wantApproves: 1},
		{name: "backend_error", store: &stubStore{err: errors.New("boom")}, action: tracking.ActionReject, wantErr: tracking.ErrDecisionFailed, wantRejects: 1},
		{name: "unknown_action", store: &stubStore{decided: true}, action: "cancel", wantErr: tracking.ErrUnknownAction},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tracking.NewService(tt.store).Decide(context.Background(), "tok", tt.action)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantApproves, tt.store.approves)
			assert.Equal(t, tt.wantRejects, tt.store.rejects)
			assert.Zero(t, tt.store.lookups)
		})
	}
}

func TestDecideMissingTokenSkipsStore(t *testing.T) {
	t.Parallel()

	store := &stubStore{decided: true}
	err := tracking.NewService(store).Decide(context.Background(), "", tracking.ActionApprove)

	require.ErrorIs(t, err, tracking.ErrTokenRequired)
	assert.Zero(t, store.approves)
}

func TestDecideTwiceAgainstMemoryStore(t *testing.T) {
	t.Parallel()

	store := memory.New()
	token := store.Mint(json.RawMessage(`{"plate":"ABC1D23"}`))
	svc := tracking.NewService(store)

	require.NoError(t, svc.Decide(context.Background(), token, tracking.ActionApprove))
	require.ErrorIs(t, svc.Decide(context.Background(), token, tracking.ActionApprove), tracking.ErrNotPending)
}

func TestNewServicePanicsOnNilStore(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { tracking.NewService(nil) })
}
