package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	_ "repairtrack/docs"
	"repairtrack/pkg/logger"
	"repairtrack/pkg/otel"
)

// Options configures the HTTP surface.
type Options struct {
	// BasePath is prepended to the tracking routes, e.g. "/functions/v1".
	BasePath     string
	AllowOrigin  string
	AllowHeaders []string
	// StrictActions answers unrecognised actions with 400 instead of
	// fetching the snapshot.
	StrictActions bool
	Swagger       bool

	Tracer  trace.Tracer
	Metrics *otel.Metrics
	Log     *logger.Logger
}

// NewRouter wires h into the route table and wraps it with the CORS, request
// id, observability and recovery middleware.
func NewRouter(h *Handler, opts Options) http.Handler {
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer()
	}
	if opts.Log == nil {
		opts.Log = logger.New(io.Discard, logger.LevelError, "repairtrack", nil)
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}

	r := mux.NewRouter()
	r.SkipClean(true)
	r.NotFoundHandler = http.HandlerFunc(h.TokenRequired)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet).Name("health")
	if opts.Swagger {
		r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler).Name("swagger")
	}

	base := strings.TrimRight(opts.BasePath, "/") + "/tracking"

	r.HandleFunc(base+"/{token}/{action:approve|reject}", h.Decide).Methods(http.MethodPost).Name("decide")
	r.HandleFunc(base+"/{token}/{action:approve|reject}/{rest:.*}", h.Decide).Methods(http.MethodPost)

	r.HandleFunc(base+"/{token}", h.Snapshot).Name("snapshot")
	r.HandleFunc(base+"/{token}/", h.Snapshot)

	other := h.Snapshot
	if opts.StrictActions {
		other = h.UnknownAction
	}
	r.HandleFunc(base+"/{token}/{action}", other).Name("action")
	r.HandleFunc(base+"/{token}/{action}/{rest:.*}", other)

	var next http.Handler = recoverer(opts.Log, r)
	next = observe(r, opts.Tracer, opts.Metrics, opts.Log, next)
	next = requestID(next)
	return cors(opts.AllowOrigin, opts.AllowHeaders, next)
}
