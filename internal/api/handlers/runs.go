package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
	"github.com/pearsonlabs/factorpipe/internal/store"
	"github.com/pearsonlabs/factorpipe/pkg/database"
	"github.com/pearsonlabs/factorpipe/pkg/logger"
	"github.com/pearsonlabs/factorpipe/pkg/redis"
)

// RunsHandler serves pipeline run records and factor rows
type RunsHandler struct {
	audit   *store.AuditRepository
	factors *store.FactorRepository
	db      *database.DB
	cache   *redis.Cache
	logger  *logger.Logger
}

// NewRunsHandler creates a new runs handler. The cache is a no-op when Redis
// is disabled.
func NewRunsHandler(audit *store.AuditRepository, factors *store.FactorRepository, db *database.DB, cache *redis.Cache, log *logger.Logger) *RunsHandler {
	return &RunsHandler{
		audit:   audit,
		factors: factors,
		db:      db,
		cache:   cache,
		logger:  log,
	}
}

// ListRuns returns the most recent pipeline runs
// GET /api/runs?limit=20
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			respondError(w, http.StatusBadRequest, "limit must be an integer between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := h.audit.RecentRuns(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetRun returns one pipeline run by id
// GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	rec, err := h.audit.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// GetFactors returns factor rows for one symbol over a date range
// GET /api/factors/{symbol}?from=2024-01-01&to=2024-12-31
func (h *RunsHandler) GetFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := mux.Vars(r)["symbol"]

	to := time.Now().UTC()
	from := to.AddDate(-1, 0, 0)

	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
	}

	var rows []contracts.FactorObservation
	key := redis.FactorRangeKey(symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	err = h.cache.GetOrSet(ctx, key, &rows, redis.TTLMedium, func() (interface{}, error) {
		return h.factors.GetBySymbolAndRange(ctx, symbol, from, to)
	})
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get factors")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve factors")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"count":  len(rows),
		"rows":   rows,
	})
}

// Health returns the database health snapshot
// GET /api/health/db
func (h *RunsHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.db.HealthCheck(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
