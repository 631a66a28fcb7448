package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/metrics"
	"github.com/sittingbulll/tokenwatch/internal/pipeline"
	"github.com/sittingbulll/tokenwatch/internal/store"
	"github.com/sittingbulll/tokenwatch/internal/worker"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Server receives transaction webhooks and exposes the read-only token
// API. Webhook handling only parses and enqueues; the pipeline itself runs
// on the worker pool so a slow upstream never delays the acknowledgement.
type Server struct {
	pipe      *pipeline.Pipeline
	pool      *worker.Pool
	approvals store.ApprovalRepository
	logger    *slog.Logger
}

func NewServer(pipe *pipeline.Pipeline, pool *worker.Pool, approvals store.ApprovalRepository, logger *slog.Logger) *Server {
	return &Server{
		pipe:      pipe,
		pool:      pool,
		approvals: approvals,
		logger:    logger.With("component", "webhook"),
	}
}

// RegisterRoutes attaches all handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/tokens", s.handleListTokens)
	mux.HandleFunc("GET /api/tokens/{mint}", s.handleGetToken)
	mux.HandleFunc("GET /api/stats", s.handleStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	metrics.WebhookReceived.Inc()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var txs []model.WebhookTransaction
	if err := json.NewDecoder(r.Body).Decode(&txs); err != nil {
		metrics.WebhookInvalid.Inc()
		s.logger.Warn("undecodable webhook body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid body"})
		return
	}

	// Deliveries arrive as an array; the transaction of interest is the
	// first element.
	if len(txs) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	ev := model.EventFromTransaction(&txs[0])
	if ev == nil {
		s.logger.Info("webhook without mint address, acknowledged and dropped")
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	deliveryID := uuid.NewString()
	err := s.pool.Submit(func(ctx context.Context) {
		s.pipe.Process(ctx, deliveryID, ev)
	})
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			metrics.WebhookDropped.Inc()
		}
		// Still acknowledged: the sender retries on its own schedule and
		// the dedup guard makes redelivery safe.
		s.logger.Error("webhook enqueue failed", "delivery_id", deliveryID, "mint", ev.MintAddress, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	s.logger.Info("webhook enqueued", "delivery_id", deliveryID, "mint", ev.MintAddress)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "delivery_id": deliveryID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.approvals.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"tokens_decided":  stats.Total,
		"tokens_approved": stats.Approved,
	})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	minNotables := queryInt(r, "min_notables", 0)
	if limit > 500 {
		limit = 500
	}

	records, err := s.approvals.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list approvals failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	filtered := make([]model.ApprovalRecord, 0, len(records))
	for _, rec := range records {
		if rec.NotableCount < minNotables {
			continue
		}
		filtered = append(filtered, rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": filtered, "limit": limit, "offset": offset})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	mint := r.PathValue("mint")
	rec, err := s.approvals.Get(r.Context(), mint)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown mint"})
		return
	}
	if err != nil {
		s.logger.Error("get approval failed", "mint", mint, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.approvals.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	// Distribution and creator leaderboard come from the most recent page;
	// good enough for an operator glance without a dedicated query.
	records, err := s.approvals.List(r.Context(), 500, 0)
	if err != nil {
		s.logger.Error("list approvals failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	distribution := map[string]int{}
	creatorCounts := map[string]int{}
	for _, rec := range records {
		distribution[notableBucket(rec.NotableCount)]++
		if rec.TwitterHandle != "" {
			creatorCounts[rec.TwitterHandle]++
		}
	}
	creators := make([]creatorStat, 0, len(creatorCounts))
	for handle, n := range creatorCounts {
		creators = append(creators, creatorStat{Handle: handle, Tokens: n})
	}
	sort.Slice(creators, func(i, j int) bool {
		if creators[i].Tokens != creators[j].Tokens {
			return creators[i].Tokens > creators[j].Tokens
		}
		return creators[i].Handle < creators[j].Handle
	})
	if len(creators) > 5 {
		creators = creators[:5]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":                stats.Total,
		"approved":             stats.Approved,
		"rejected":             stats.Rejected,
		"notable_distribution": distribution,
		"top_creators":         creators,
	})
}

type creatorStat struct {
	Handle string `json:"handle"`
	Tokens int    `json:"tokens"`
}

func notableBucket(n int) string {
	switch {
	case n == 0:
		return "0"
	case n < 5:
		return "1-4"
	case n < 10:
		return "5-9"
	case n < 25:
		return "10-24"
	default:
		return "25+"
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
