// Package postgres calls the tracking procedures of a PostgreSQL backend.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"repairtrack/pkg/tracking"
)

// Repository invokes the tracking procedures over database/sql.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository. The database must define the
// get_order_by_tracking_token, approve_quote_by_token and
// reject_quote_by_token functions, each taking the token as its only argument.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Lookup returns the JSON snapshot for token, or nil when the function
// returns NULL.
func (r *Repository) Lookup(ctx context.Context, token tracking.Token) (json.RawMessage, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, "SELECT "+tracking.ProcLookup+"($1)", string(token)).Scan(&raw)
	if err != nil {
		return nil, wrap(tracking.ProcLookup, err)
	}
	if raw == nil {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// ApproveQuote runs the approve procedure.
func (r *Repository) ApproveQuote(ctx context.Context, token tracking.Token) (bool, error) {
	return r.decide(ctx, tracking.ProcApprove, token)
}

// RejectQuote runs the reject procedure.
func (r *Repository) RejectQuote(ctx context.Context, token tracking.Token) (bool, error) {
	return r.decide(ctx, tracking.ProcReject, token)
}

func (r *Repository) decide(ctx context.Context, proc string, token tracking.Token) (bool, error) {
	var ok sql.NullBool
	if err := r.db.QueryRowContext(ctx, "SELECT "+proc+"($1)", string(token)).Scan(&ok); err != nil {
		return false, wrap(proc, err)
	}
	return ok.Valid && ok.Bool, nil
}

func wrap(proc string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %s (sqlstate %s): %w", proc, pqErr.Message, pqErr.Code, err)
	}
	return fmt.Errorf("%s: %w", proc, err)
}
