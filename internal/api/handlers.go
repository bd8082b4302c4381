package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"plant-gateway/internal/vision"
	"plant-gateway/middleware/ratelimit"
	"plant-gateway/middleware/ratelimit/application"
	"plant-gateway/middleware/ratelimit/domain"
)

type handler struct {
	quota      application.QuotaService
	analyzer   vision.Analyzer
	logger     *slog.Logger
	maxBody    int64
	production bool
	metrics    *Metrics

	// análises enviadas ao modelo desde o start do processo
	requests atomic.Int64
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type analyzeResponse struct {
	Analysis          string `json:"analysis"`
	RequestCount      int64  `json:"requestCount"`
	RemainingRequests int    `json:"remainingRequests"`
	ResetIn           int    `json:"resetIn"`
}

type errorBody struct {
	Error             string `json:"error"`
	Details           string `json:"details,omitempty"`
	RequestCount      *int64 `json:"requestCount,omitempty"`
	RemainingRequests *int   `json:"remainingRequests,omitempty"`
}

type quotaResponse struct {
	Limit             int `json:"limit"`
	Used              int `json:"used"`
	RemainingRequests int `json:"remainingRequests"`
	ResetIn           int `json:"resetIn"`
}

// analyzePlant consome uma unidade da cota antes de qualquer outra coisa; uma
// requisição rejeitada nunca chega ao modelo.
func (h *handler) analyzePlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dec, err := h.quota.Admit(ctx, domain.QuotaRequest{
		Key:    domain.QuotaKey,
		Weight: 1,
		Method: r.Method,
		Path:   r.URL.Path,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "quota backend failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Rate limiter unavailable. Please try again later."})
		return
	}
	ratelimit.SetQuotaHeaders(w.Header(), dec)
	if !dec.Allowed {
		remaining := dec.Remaining
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:             fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", max(dec.ResetInSeconds(), 1)),
			RemainingRequests: &remaining,
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: fmt.Sprintf("Image too large. Maximum request size is %d bytes.", tooLarge.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return
	}

	img, err := vision.ParseImage(req.Image)
	if err != nil {
		if errors.Is(err, vision.ErrNoImage) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "No image data provided"})
			return
		}
		h.logger.InfoContext(ctx, "rejected image payload", "error", err)
		writeJSON(w, http.StatusBadRequest, h.failure(vision.Classify(err), err, nil, nil))
		return
	}

	count := h.requests.Add(1)
	start := time.Now()
	analysis, err := h.analyzer.Analyze(ctx, img)
	h.metrics.observe(err, time.Since(start))
	if err != nil {
		h.logger.ErrorContext(ctx, "plant analysis failed", "error", err, "request_count", count)
		remaining := dec.Remaining
		writeJSON(w, http.StatusInternalServerError, h.failure(vision.Classify(err), err, &count, &remaining))
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Analysis:          analysis,
		RequestCount:      count,
		RemainingRequests: dec.Remaining,
		ResetIn:           dec.ResetInSeconds(),
	})
}

// failure monta o corpo de erro; details só fora de produção.
func (h *handler) failure(msg string, err error, count *int64, remaining *int) errorBody {
	body := errorBody{Error: msg, RequestCount: count, RemainingRequests: remaining}
	if !h.production && err != nil {
		body.Details = err.Error()
	}
	return body
}

func (h *handler) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.analyzer.ListModels(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list models failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to list models"})
		return
	}
	if models == nil {
		models = []vision.Model{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (h *handler) quotaStatus(w http.ResponseWriter, r *http.Request) {
	dec, err := h.quota.Status(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "quota status failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Rate limiter unavailable. Please try again later."})
		return
	}
	ratelimit.SetQuotaHeaders(w.Header(), domain.QuotaDecision{
		Allowed:   true,
		Limit:     dec.Limit,
		Used:      dec.Used,
		Remaining: dec.Remaining,
		ResetIn:   dec.ResetIn,
	})
	writeJSON(w, http.StatusOK, quotaResponse{
		Limit:             dec.Limit,
		Used:              dec.Used,
		RemainingRequests: dec.Remaining,
		ResetIn:           dec.ResetInSeconds(),
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rejectClient é a resposta do token bucket por cliente, no mesmo formato JSON.
func rejectClient(w http.ResponseWriter, _ *http.Request, _ domain.Decision) {
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Too many requests from this client. Please slow down."})
}

// rejectBusy responde quando nenhuma vaga de análise abriu no prazo.
func rejectBusy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Server busy. Please try again shortly."})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
