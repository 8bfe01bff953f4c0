package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
	domain "github.com/Zhima-Mochi/payfacade/app/internal/domain/payment"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability/logctx"
)

// PaymentFacade is the processor surface exposed over HTTP.
type PaymentFacade interface {
	ProcessPayment(ctx context.Context, userID string, amount int64) (domain.TransactionResult, error)
	RefundPayment(ctx context.Context, transactionID string) (domain.TransactionResult, error)
	GetPaymentStatus(ctx context.Context, transactionID string) (domain.TransactionStatus, error)
}

type Handler struct {
	payments PaymentFacade
	outcomes outcome.Reader
	archive  outcome.Archive
	validate *validator.Validate
	log      observability.Logger
	tel      observability.Observability

	httpRequests observability.Counter   // http_requests_total{method,route,status}
	httpDuration observability.Histogram // http_request_duration_seconds{method,route,status}
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"

	defaultOutcomeLimit = 50
	maxOutcomeLimit     = 1000

	maxBodyBytes = 64 << 10
)

var errTrailingData = errors.New("request body must contain a single JSON object")

// NewHandler wires the HTTP surface. archive may be nil when no durable copy is configured.
func NewHandler(payments PaymentFacade, outcomes outcome.Reader, archive outcome.Archive, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Handler{
		payments:     payments,
		outcomes:     outcomes,
		archive:      archive,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
		httpRequests: metrics.Counter(observability.MHTTPRequests),
		httpDuration: metrics.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Handler
	h.handle(r, http.MethodPost, "/payments", h.handleProcessPayment)
	h.handle(r, http.MethodPost, "/refunds", h.handleRefundPayment)
	h.handle(r, http.MethodGet, "/payments/{transactionID}/status", h.handlePaymentStatus)
	h.handle(r, http.MethodGet, "/outcomes", h.handleOutcomes)
	h.handle(r, http.MethodGet, "/outcomes/archive", h.handleOutcomeArchive)
	h.handle(r, http.MethodGet, "/health", h.handleHealth)

	return r
}

func (h *Handler) handle(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	route := method + " " + pattern
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			func(r *http.Request) string { return r.Header.Get(headerTenantID) },
			h.tel,
		)(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Stable route template for low-cardinality labels
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

type processPaymentRequest struct {
	UserID string `json:"user_id" validate:"max=128"`
	Amount *int64 `json:"amount" validate:"required"`
}

type refundPaymentRequest struct {
	TransactionID string `json:"transaction_id" validate:"max=128"`
}

type resultResponse struct {
	domain.TransactionResult
	Error string `json:"error,omitempty"`
}

type statusResponse struct {
	TransactionID string                   `json:"transaction_id"`
	Status        domain.TransactionStatus `json:"status"`
	Error         string                   `json:"error,omitempty"`
}

type outcomesResponse struct {
	Entries []outcome.Entry `json:"entries"`
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := h.decode(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	res, err := h.payments.ProcessPayment(r.Context(), req.UserID, *req.Amount)
	writeResult(w, res, err)
}

func (h *Handler) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	var req refundPaymentRequest
	if err := h.decode(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	res, err := h.payments.RefundPayment(r.Context(), req.TransactionID)
	writeResult(w, res, err)
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")

	status, err := h.payments.GetPaymentStatus(r.Context(), id)
	body := statusResponse{TransactionID: id, Status: status}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		body.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, body)
	case err != nil:
		body.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, body)
	default:
		writeJSON(w, http.StatusOK, body)
	}
}

func (h *Handler) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	limit, err := h.limit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries := h.outcomes.Last(limit)
	if entries == nil {
		entries = []outcome.Entry{}
	}
	writeJSON(w, http.StatusOK, outcomesResponse{Entries: entries})
}

func (h *Handler) handleOutcomeArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, errors.New("outcome archive is not configured"))
		return
	}
	limit, err := h.limit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := h.archive.Recent(r.Context(), limit)
	if err != nil {
		logctx.FromOr(r.Context(), h.log).Warn("outcome_archive_read_failed",
			observability.F("error", err),
		)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if entries == nil {
		entries = []outcome.Entry{}
	}
	writeJSON(w, http.StatusOK, outcomesResponse{Entries: entries})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type limitQuery struct {
	Limit int `validate:"min=1,max=1000"`
}

func (h *Handler) limit(r *http.Request) (int, error) {
	q := limitQuery{Limit: defaultOutcomeLimit}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, errors.New("limit must be an integer")
		}
		q.Limit = n
	}
	if err := h.validate.Struct(q); err != nil {
		return 0, errors.New("limit must be between 1 and " + strconv.Itoa(maxOutcomeLimit))
	}
	return q.Limit, nil
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := wrapStatus(w)

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("payfacade.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := wrapStatus(w)
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))
		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected instruments.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := wrapStatus(w)

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.httpRequests.Add(1, labels...)
		h.httpDuration.Observe(time.Since(start).Seconds(), labels...)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errTrailingData
	}
	return h.validate.Struct(dst)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	writeError(w, http.StatusBadRequest, err)
}

func writeResult(w http.ResponseWriter, res domain.TransactionResult, err error) {
	body := resultResponse{TransactionResult: res}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		body.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, body)
	case err != nil:
		body.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, body)
	case !res.Success:
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
