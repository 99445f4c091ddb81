// Package httpapi exposes the lending engine over HTTP with JSON bodies.
//
// Every response carries "success" and "message". Successful operations answer 200, refusals
// by a lending rule 400 and technical failures 500.
package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/intent"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 1 << 20

	LogMsgRequestFailed = "http request failed"
	LogAttrPath         = "path"
	LogAttrRequestID    = "request_id"
)

var (
	// ErrNilService is returned when New is called without a lending service.
	ErrNilService = errors.New("lending service must not be nil")

	// ErrNilRouter is returned when New is called without an intent router.
	ErrNilRouter = errors.New("intent router must not be nil")

	errInvalidBody = core.Validation("request body must be a JSON object")
)

// API serves the lending endpoints.
type API struct {
	service          engine.Service
	router           *intent.Router
	requestTimeout   time.Duration
	registerer       prometheus.Registerer
	gatherer         prometheus.Gatherer
	logger           shell.Logger
	contextualLogger shell.ContextualLogger
}

// Option defines a functional option for configuring API.
type Option func(*API)

// WithRequestTimeout bounds the handling of a single request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(a *API) {
		if timeout > 0 {
			a.requestTimeout = timeout
		}
	}
}

// WithPrometheus sets where request metrics are registered and what GET /metrics exposes.
// Without it the API uses a registry of its own.
func WithPrometheus(registerer prometheus.Registerer, gatherer prometheus.Gatherer) Option {
	return func(a *API) {
		if registerer != nil && gatherer != nil {
			a.registerer, a.gatherer = registerer, gatherer
		}
	}
}

// WithLogger sets the logger for technical failures.
func WithLogger(logger shell.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithContextualLogger sets the contextual logger for technical failures.
func WithContextualLogger(logger shell.ContextualLogger) Option {
	return func(a *API) {
		a.contextualLogger = logger
	}
}

// New creates an API on service. router answers POST /smart_route.
func New(service engine.Service, router *intent.Router, options ...Option) (*API, error) {
	if service == nil {
		return nil, ErrNilService
	}

	if router == nil {
		return nil, ErrNilRouter
	}

	a := &API{
		service:        service,
		router:         router,
		requestTimeout: defaultRequestTimeout,
	}

	for _, option := range options {
		option(a)
	}

	if a.registerer == nil {
		registry := prometheus.NewRegistry()
		a.registerer, a.gatherer = registry, registry
	}

	return a, nil
}

// Handler builds the chi router. Call it once per API: request metrics are registered on
// every call.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(newRequestMetrics(a.registerer).instrument)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.requestTimeout))

		r.Get("/", a.home)
		r.Post("/login", a.login)
		r.Post("/smart_route", a.smartRoute)
		r.Get("/available_books", a.availableBooks)
		r.Post("/check_book", a.checkBook)
		r.Post("/recommend_books", a.recommendBooks)
		r.Post("/lend_by_title", a.lendByTitle)
		r.Post("/active_borrows", a.activeBorrows)
		r.Post("/return_book", a.returnBook)
		r.Post("/student_status", a.studentStatus)
		r.Post("/search_books", a.searchBooks)
		r.Post("/overdue_status", a.overdueStatus)
	})

	return r
}

// decode reads the JSON body into dst. An empty body leaves dst zero, so missing fields are
// reported by the operation itself.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	return errInvalidBody
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err onto a status code: 400 for business failures, 500 for everything else.
// Technical failures are logged.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	if !core.IsBusinessFailure(err) {
		status = http.StatusInternalServerError
		a.logFailure(r, err)
	}

	writeJSON(w, status, errorResponse{
		envelope: envelope{Success: false, Message: core.MessageOf(err)},
		Error:    core.KindOf(err),
	})
}

func (a *API) logFailure(r *http.Request, err error) {
	args := []any{
		LogAttrPath, r.URL.Path,
		LogAttrRequestID, middleware.GetReqID(r.Context()),
		shell.LogAttrError, err.Error(),
	}

	if a.contextualLogger != nil {
		a.contextualLogger.ErrorContext(r.Context(), LogMsgRequestFailed, args...)
		return
	}

	if a.logger != nil {
		a.logger.Error(LogMsgRequestFailed, args...)
	}
}
