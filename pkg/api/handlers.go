// Package api exposes the customer tracking endpoint over HTTP.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"repairtrack/pkg/logger"
	"repairtrack/pkg/otel"
	"repairtrack/pkg/tracking"
)

type tracker interface {
	Snapshot(ctx context.Context, token tracking.Token) (json.RawMessage, error)
	Decide(ctx context.Context, token tracking.Token, action tracking.Action) error
}

// Handler serves the tracking operations.
type Handler struct {
	tracker tracker
	log     *logger.Logger
}

// New returns a Handler using t. It panics if t is nil; a nil log discards
// output.
func New(t tracker, log *logger.Logger) *Handler {
	if t == nil {
		panic("api.New: nil tracker")
	}
	if log == nil {
		log = logger.New(io.Discard, logger.LevelError, "repairtrack", nil)
	}
	return &Handler{tracker: t, log: log}
}

// Snapshot returns the order snapshot for a tracking token.
// @Summary Track an order
// @Description Returns the order snapshot exposed for the token, unmodified.
// @Produce json
// @Param token path string true "Tracking token"
// @Success 200 {object} object
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /tracking/{token} [get]
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.Snapshot")
	defer span.End()

	token := tracking.Token(mux.Vars(r)["token"])
	snap, err := h.tracker.Snapshot(ctx, token)
	if err != nil {
		h.fail(ctx, w, err, token, "")
		return
	}
	if !json.Valid(snap) {
		h.fail(ctx, w, fmt.Errorf("%w: %d bytes", errMalformedSnapshot, len(snap)), token, "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap)
}

// Decide approves or rejects the pending quote of a tracked order.
// @Summary Decide on a quote
// @Description Applies the customer's decision. A quote that is missing or already decided yields 404.
// @Produce json
// @Param token path string true "Tracking token"
// @Param action path string true "Decision" Enums(approve, reject)
// @Success 200 {object} DecisionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /tracking/{token}/{action} [post]
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := tracking.Token(vars["token"])

	action, err := tracking.ParseAction(vars["action"])
	if err != nil {
		h.fail(r.Context(), w, err, token, "")
		return
	}

	ctx, span := otel.AddSpan(r.Context(), "api.Decide", attribute.String("tracking.action", string(action)))
	defer span.End()

	if err := h.tracker.Decide(ctx, token, action); err != nil {
		h.fail(ctx, w, err, token, action)
		return
	}

	h.log.Info(ctx, "quote decided", "action", action, "token_ref", tokenRef(token))
	writeJSON(w, http.StatusOK, DecisionResponse{Success: true, Action: action})
}

// UnknownAction rejects a tracking path whose action is neither approve nor
// reject. A read request naming a known action still fetches the snapshot.
func (h *Handler) UnknownAction(w http.ResponseWriter, r *http.Request) {
	if _, err := tracking.ParseAction(mux.Vars(r)["action"]); err == nil {
		h.Snapshot(w, r)
		return
	}
	h.fail(r.Context(), w, tracking.ErrUnknownAction, tracking.Token(mux.Vars(r)["token"]), "")
}

// TokenRequired answers any request that does not name a tracking token.
func (h *Handler) TokenRequired(w http.ResponseWriter, r *http.Request) {
	h.fail(r.Context(), w, tracking.ErrTokenRequired, "", "")
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, token tracking.Token, action tracking.Action) {
	status, msg := classify(err, action)
	kind := tracking.Kind(err)
	if st := stateFrom(ctx); st != nil {
		st.kind = kind
	}

	kv := []any{"kind", kind, "status", status, "error", err}
	if token != "" {
		kv = append(kv, "token_ref", tokenRef(token))
	}
	if action != "" {
		kv = append(kv, "action", action)
	}

	switch {
	case status >= http.StatusInternalServerError:
		h.log.Error(ctx, "tracking request failed", kv...)
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
	case backendFailure(err):
		h.log.Error(ctx, "tracking backend call failed", kv...)
		trace.SpanFromContext(ctx).RecordError(err)
	default:
		h.log.Debug(ctx, "tracking request refused", kv...)
	}

	writeJSON(w, status, ErrorResponse{Error: msg})
}

// tokenRef identifies a token in logs without revealing it.
func tokenRef(token tracking.Token) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
