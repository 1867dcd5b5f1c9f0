package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/pipeline"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/trigger"
)

const requestTimeout = 15 * time.Second

// Service is the pipeline surface exposed over HTTP.
type Service interface {
	HandleSnapshot(ctx context.Context, snap model.MarketSnapshot) (*model.TriggerSignal, error)
	HandleDecision(ctx context.Context, text, symbol string, ref float64) pipeline.DecisionResult
	UpdateRegime(hint model.RegimeHint) trigger.ThresholdSet
	Stats() model.TriggerStats
	Thresholds() trigger.ThresholdSet
	Regime() model.RegimeHint
	RecentAudits(ctx context.Context, symbol string, limit int) ([]model.AuditRecord, error)
}

type handler struct {
	svc Service
	log zerolog.Logger
}

type snapshotResponse struct {
	Triggered bool                 `json:"triggered"`
	Signal    *model.TriggerSignal `json:"signal"`
}

type regimeRequest struct {
	Trend      string `json:"trend" validate:"omitempty,max=16"`
	Volatility string `json:"volatility" validate:"omitempty,max=16"`
}

type thresholdsResponse struct {
	Regime     model.RegimeHint     `json:"regime"`
	Thresholds trigger.ThresholdSet `json:"thresholds"`
}

type decisionRequest struct {
	Symbol         string  `json:"symbol" validate:"required,max=20"`
	Text           string  `json:"text" validate:"required"`
	ReferencePrice float64 `json:"reference_price" validate:"gte=0"`
}

type auditQuery struct {
	Symbol string `validate:"max=20"`
	Limit  int    `default:"20" validate:"gte=1,lte=200"`
}

// NewRouter builds the HTTP API. gatherer backs /metrics.
func NewRouter(svc Service, gatherer prometheus.Gatherer, log zerolog.Logger) http.Handler {
	h := &handler{svc: svc, log: log.With().Str("component", "api").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/snapshots", h.postSnapshot)
		r.Post("/regime", h.postRegime)
		r.Get("/stats", h.getStats)
		r.Get("/thresholds", h.getThresholds)
		r.Post("/decisions", h.postDecision)
		r.Get("/decisions", h.listDecisions)
	})
	return r
}

func (h *handler) postSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap model.MarketSnapshot
	if errs := readAndValidate(r, w, &snap); errs != nil {
		writeErrors(w, http.StatusBadRequest, errs)
		return
	}
	sig, err := h.svc.HandleSnapshot(r.Context(), snap)
	if errors.Is(err, trigger.ErrMissingSymbol) {
		writeErrors(w, http.StatusUnprocessableEntity, []ValidationError{{
			Code: "ERR_REQUIRED", Field: "symbol", Message: "symbol is required",
		}})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("handle snapshot")
		writeErrors(w, http.StatusInternalServerError, []ValidationError{{Code: "ERR_INTERNAL", Message: err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Triggered: sig != nil, Signal: sig})
}

func (h *handler) postRegime(w http.ResponseWriter, r *http.Request) {
	var req regimeRequest
	if errs := readAndValidate(r, w, &req); errs != nil {
		writeErrors(w, http.StatusBadRequest, errs)
		return
	}
	th := h.svc.UpdateRegime(model.RegimeHint{
		Trend:      strings.ToLower(strings.TrimSpace(req.Trend)),
		Volatility: strings.ToLower(strings.TrimSpace(req.Volatility)),
	})
	writeJSON(w, http.StatusOK, thresholdsResponse{Regime: h.svc.Regime(), Thresholds: th})
}

func (h *handler) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats())
}

func (h *handler) getThresholds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, thresholdsResponse{Regime: h.svc.Regime(), Thresholds: h.svc.Thresholds()})
}

func (h *handler) postDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if errs := readAndValidate(r, w, &req); errs != nil {
		writeErrors(w, http.StatusBadRequest, errs)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.HandleDecision(r.Context(), req.Text, req.Symbol, req.ReferencePrice))
}

func (h *handler) listDecisions(w http.ResponseWriter, r *http.Request) {
	q := auditQuery{Symbol: r.URL.Query().Get("symbol")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErrors(w, http.StatusBadRequest, []ValidationError{{
				Code: "ERR_NUMBER", Field: "limit", Message: "limit must be an integer",
			}})
			return
		}
		q.Limit = n
		if n == 0 {
			q.Limit = -1 // an explicit zero is rejected, not defaulted
		}
	}
	if errs := applyAndValidate(r, &q); errs != nil {
		writeErrors(w, http.StatusBadRequest, errs)
		return
	}
	audits, err := h.svc.RecentAudits(r.Context(), q.Symbol, q.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list audits")
		writeErrors(w, http.StatusInternalServerError, []ValidationError{{Code: "ERR_INTERNAL", Message: err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": audits})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
