package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"repairtrack/pkg/logger"
	"repairtrack/pkg/otel"
)

// requestState carries what handlers learn about a request back to the
// observing middleware.
type requestState struct {
	kind string
}

type stateKey struct{}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateKey{}).(*requestState)
	return st
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// cors sets the CORS headers on every response and answers pre-flight
// requests directly.
func cors(allowOrigin string, allowHeaders []string, next http.Handler) http.Handler {
	headers := strings.Join(allowHeaders, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", headers)
		if r.Method == http.MethodOptions {
			// nil suppresses content sniffing
			w.Header()["Content-Type"] = nil
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// observe opens the server span, records metrics and writes the access log.
// Paths are never logged because they carry tracking tokens.
func observe(router *mux.Router, tracer trace.Tracer, metrics *otel.Metrics, log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeName(router, r)

		ctx := otel.ExtractHTTP(r.Context(), r.Header)
		ctx = otel.InjectTracing(ctx, tracer)
		ctx, span := tracer.Start(ctx, r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		st := &requestState{}
		ctx = context.WithValue(ctx, stateKey{}, st)

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, st.kind)
		}
		metrics.Record(ctx, route, r.Method, rec.status, st.kind, elapsed)

		log.Info(ctx, "request",
			"request_id", w.Header().Get("X-Request-Id"),
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", elapsed,
		)
	})
}

func routeName(router *mux.Router, r *http.Request) string {
	var m mux.RouteMatch
	if router.Match(r, &m) && m.Route != nil {
		if name := m.Route.GetName(); name != "" {
			return name
		}
	}
	return "unmatched"
}

// recoverer turns a panic into the generic 500 response.
func recoverer(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			ctx := r.Context()
			log.Error(ctx, "panic recovered", "error", fmt.Sprint(v), "stack", string(debug.Stack()))
			if st := stateFrom(ctx); st != nil {
				st.kind = "panic"
			}
			if rec, ok := w.(*responseRecorder); ok && rec.status != 0 {
				return
			}
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
		}()
		next.ServeHTTP(w, r)
	})
}
