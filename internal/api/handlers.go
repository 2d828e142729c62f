package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailchimp-clickmap/internal/clickmap"
	"github.com/ignite/mailchimp-clickmap/internal/config"
	"github.com/ignite/mailchimp-clickmap/internal/mailchimp"
	"github.com/ignite/mailchimp-clickmap/internal/pkg/logger"
	"github.com/ignite/mailchimp-clickmap/internal/pkg/runlock"
	"github.com/ignite/mailchimp-clickmap/internal/storage"
)

// Handlers holds the API handler dependencies.
type Handlers struct {
	pipeline *clickmap.Pipeline
	source   clickmap.Source
	store    *storage.RunStore // nil when no database is configured
	defaults config.PipelineConfig

	// Runs execute one at a time; lock enforces that, across instances
	// when backed by Redis or Postgres. lastRun keeps the most recent
	// result for store-less deployments.
	lock    runlock.Lock
	mu      sync.RWMutex
	lastRun *clickmap.RunResult
}

// NewHandlers creates the API handlers. store may be nil.
func NewHandlers(pipeline *clickmap.Pipeline, source clickmap.Source, store *storage.RunStore, defaults config.PipelineConfig) *Handlers {
	return &Handlers{
		pipeline: pipeline,
		source:   source,
		store:    store,
		defaults: defaults,
		lock:     runlock.NewLocalLock(),
	}
}

// SetRunLock swaps in a shared-backend run lock. Call before serving.
func (h *Handlers) SetRunLock(lock runlock.Lock) {
	h.lock = lock
}

// runRequest is the body of POST /api/runs.
type runRequest struct {
	NameFilter   string `json:"name_filter"`
	LookbackDays int    `json:"lookback_days"`
}

// runResponse summarizes a completed run without inlining every record.
type runResponse struct {
	RunID              string    `json:"run_id"`
	StartedAt          time.Time `json:"started_at"`
	CompletedAt        time.Time `json:"completed_at"`
	NameFilter         string    `json:"name_filter,omitempty"`
	CampaignsListed    int       `json:"campaigns_listed"`
	CampaignsProcessed int       `json:"campaigns_processed"`
	CampaignsSkipped   int       `json:"campaigns_skipped"`
	RecordCount        int       `json:"record_count"`
}

func summarize(result *clickmap.RunResult) runResponse {
	return runResponse{
		RunID:              result.RunID,
		StartedAt:          result.StartedAt,
		CompletedAt:        result.CompletedAt,
		NameFilter:         result.NameFilter,
		CampaignsListed:    result.CampaignsListed,
		CampaignsProcessed: result.CampaignsProcessed,
		CampaignsSkipped:   result.CampaignsSkipped,
		RecordCount:        len(result.Records),
	}
}

// HandleTriggerRun executes a pipeline run and returns its summary.
// Runs are serialized; a concurrent request gets 409.
//
//	POST /api/runs
func (h *Handlers) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil {
		// An empty body means "use configured defaults"
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.NameFilter == "" {
		req.NameFilter = h.defaults.NameFilter
	}
	if req.LookbackDays <= 0 {
		req.LookbackDays = h.defaults.LookbackDays
	}

	acquired, err := h.lock.Acquire(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "acquiring run lock: "+err.Error())
		return
	}
	if !acquired {
		respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer func() {
		// Release with a fresh context so a cancelled request still
		// frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.lock.Release(releaseCtx); err != nil {
			logger.Error("api: releasing run lock failed", "error", err.Error())
		}
	}()

	result, err := h.pipeline.Run(r.Context(), clickmap.RunOptions{
		Lookback:   time.Duration(req.LookbackDays) * 24 * time.Hour,
		NameFilter: req.NameFilter,
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, "run failed: "+err.Error())
		return
	}

	h.mu.Lock()
	h.lastRun = result
	h.mu.Unlock()

	if h.store != nil {
		if err := h.store.SaveRun(r.Context(), result); err != nil {
			// The run itself succeeded; surface persistence trouble in
			// logs but still hand the caller the result.
			logger.Error("api: saving run failed", "run_id", result.RunID, "error", err.Error())
		}
	}

	respondJSON(w, http.StatusOK, summarize(result))
}

// HandleListRuns returns stored run summaries, newest first.
//
//	GET /api/runs?limit=n
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.mu.RLock()
		last := h.lastRun
		h.mu.RUnlock()
		if last == nil {
			respondJSON(w, http.StatusOK, []runResponse{})
			return
		}
		respondJSON(w, http.StatusOK, []runResponse{summarize(last)})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "listing runs: "+err.Error())
		return
	}
	if runs == nil {
		runs = []storage.RunSummary{}
	}
	respondJSON(w, http.StatusOK, runs)
}

// HandleGetRunRecords returns one run's click-map records in
// campaign-then-order sequence.
//
//	GET /api/runs/{runID}/records
func (h *Handlers) HandleGetRunRecords(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if h.store == nil {
		h.mu.RLock()
		last := h.lastRun
		h.mu.RUnlock()
		if last == nil || last.RunID != runID {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		respondJSON(w, http.StatusOK, last.Records)
		return
	}

	records, err := h.store.GetRecords(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "fetching records: "+err.Error())
		return
	}
	if records == nil {
		// A stored run can legitimately have zero records (every
		// campaign skipped); only an unknown run is a 404.
		exists, err := h.store.RunExists(r.Context(), runID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "checking run: "+err.Error())
			return
		}
		if !exists {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		records = []clickmap.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

// HandleListCampaigns proxies the upstream campaign list.
//
//	GET /api/campaigns?filter=substr&days=n
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = h.defaults.LookbackDays
	}
	filter := r.URL.Query().Get("filter")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	campaigns, err := h.source.ListCampaigns(ctx, since, mailchimp.TitleContains(filter))
	if err != nil {
		respondError(w, http.StatusBadGateway, "listing campaigns: "+err.Error())
		return
	}
	if campaigns == nil {
		campaigns = []mailchimp.Campaign{}
	}
	respondJSON(w, http.StatusOK, campaigns)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
