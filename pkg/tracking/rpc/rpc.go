// Package rpc calls the tracking procedures of a hosted backend through its
// PostgREST-style HTTP RPC interface (POST /rest/v1/rpc/{procedure}).
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"repairtrack/pkg/tracking"
)

// TokenParam is the argument name every tracking procedure takes.
const TokenParam = "p_token"

const maxErrorBody = 4 << 10

// Error is a non-2xx reply from the backend.
type Error struct {
	Procedure string
	Status    int
	Message   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s: status %d: %s", e.Procedure, e.Status, e.Message)
}

// Client invokes tracking procedures with a privileged service credential.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// New returns a Client for the backend at baseURL. A nil hc uses
// http.DefaultClient.
func New(baseURL, serviceKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       hc,
	}
}

// Lookup returns the snapshot for token, or nil when the procedure returns null.
func (c *Client) Lookup(ctx context.Context, token tracking.Token) (json.RawMessage, error) {
	raw, err := c.call(ctx, tracking.ProcLookup, token)
	if err != nil {
		return nil, err
	}
	if tracking.IsEmpty(raw) {
		return nil, nil
	}
	return raw, nil
}

// ApproveQuote runs the approve procedure.
func (c *Client) ApproveQuote(ctx context.Context, token tracking.Token) (bool, error) {
	return c.decide(ctx, tracking.ProcApprove, token)
}

// RejectQuote runs the reject procedure.
func (c *Client) RejectQuote(ctx context.Context, token tracking.Token) (bool, error) {
	return c.decide(ctx, tracking.ProcReject, token)
}

func (c *Client) decide(ctx context.Context, proc string, token tracking.Token) (bool, error) {
	raw, err := c.call(ctx, proc, token)
	if err != nil {
		return false, err
	}
	if tracking.IsEmpty(raw) {
		return false, nil
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false, fmt.Errorf("rpc %s: decode result: %w", proc, err)
	}
	return ok, nil
}

func (c *Client) call(ctx context.Context, proc string, token tracking.Token) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{TokenParam: string(token)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/rpc/"+proc, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", proc, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", proc, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{Procedure: proc, Status: resp.StatusCode, Message: errorMessage(msg)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: read body: %w", proc, err)
	}
	return json.RawMessage(bytes.TrimSpace(raw)), nil
}

// errorMessage extracts the message field of a PostgREST error body, falling
// back to the raw body.
func errorMessage(body []byte) string {
	var pgErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &pgErr); err == nil && pgErr.Message != "" {
		return pgErr.Message
	}
	return strings.TrimSpace(string(body))
}
