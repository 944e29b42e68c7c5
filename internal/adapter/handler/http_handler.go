package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/beer-stock/internal/core/service"
	"github.com/rl1809/beer-stock/internal/platform/observability"
)

const transportHTTP = "http"

type HTTPHandler struct {
	beerService *service.BeerService
	metrics     *observability.Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewHTTPHandler(beerService *service.BeerService, metrics *observability.Metrics, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		beerService: beerService,
		metrics:     metrics,
		logger:      logger,
		tracer:      otel.Tracer("github.com/rl1809/beer-stock/internal/adapter/handler"),
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.traceContext)

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1/beers", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{name}", h.GetByName)
		r.Put("/{id}", h.Replace)
		r.Delete("/{id}", h.Delete)
		r.Patch("/{id}/increment", h.Increment)
		r.Patch("/{id}/decrement", h.Decrement)
	})
	return r
}

// traceContext continues the caller's trace and opens a server span per request.
func (h *HTTPHandler) traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := h.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("request.id", middleware.GetReqID(r.Context())),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.response.status_code", ww.Status()))
	})
}

func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BeerRequest
	if !h.decode(w, r, "create", start, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.fail(w, "create", start, err)
		return
	}

	beer, err := h.beerService.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create", start, err)
		return
	}
	h.metrics.Observe(transportHTTP, "create", observability.OutcomeOK, start)
	writeJSON(w, http.StatusCreated, toBeerResponse(*beer))
}

func (h *HTTPHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	beer, err := h.beerService.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, "get", start, err)
		return
	}
	h.metrics.Observe(transportHTTP, "get", observability.OutcomeOK, start)
	writeJSON(w, http.StatusOK, toBeerResponse(*beer))
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	beers, err := h.beerService.List(r.Context())
	if err != nil {
		h.fail(w, "list", start, err)
		return
	}
	h.metrics.Observe(transportHTTP, "list", observability.OutcomeOK, start)
	writeJSON(w, http.StatusOK, toBeerResponses(beers))
}

func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.beerService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete", start, err)
		return
	}
	h.metrics.Observe(transportHTTP, "delete", observability.OutcomeOK, start)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Replace(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BeerRequest
	if !h.decode(w, r, "replace", start, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.fail(w, "replace", start, err)
		return
	}

	beer, err := h.beerService.Replace(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "replace", start, err)
		return
	}
	h.metrics.Observe(transportHTTP, "replace", observability.OutcomeOK, start)
	writeJSON(w, http.StatusOK, toBeerResponse(*beer))
}

func (h *HTTPHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, "increment", h.beerService.Increment)
}

func (h *HTTPHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, "decrement", h.beerService.Decrement)
}

func (h *HTTPHandler) adjust(w http.ResponseWriter, r *http.Request, op string, apply adjustFunc) {
	start := time.Now()

	var req QuantityRequest
	if !h.decode(w, r, op, start, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, op, start, err)
		return
	}

	beer, err := apply(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		h.fail(w, op, start, err)
		return
	}
	h.metrics.Observe(transportHTTP, op, observability.OutcomeOK, start)
	writeJSON(w, http.StatusOK, toBeerResponse(*beer))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, op string, start time.Time, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.fail(w, op, start, fmt.Errorf("%w: invalid request body", ErrInvalidRequest))
		return false
	}
	return true
}

func (h *HTTPHandler) fail(w http.ResponseWriter, op string, start time.Time, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("operation", op), zap.Error(err))
	}
	h.metrics.Observe(transportHTTP, op, outcome(err), start)
	writeJSON(w, status, ErrorResponse{Message: publicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
