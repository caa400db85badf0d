package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JoeBashe/stl-scraper/internal/contextkeys"
	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
	"github.com/JoeBashe/stl-scraper/internal/core/usecase"
)

// ScrapeHandlers exposes the scraping pipelines over HTTP. Runs execute in
// the background; the response only acknowledges the run id.
type ScrapeHandlers struct {
	searchUC  *usecase.SearchScrapeUseCase
	refreshUC *usecase.CalendarRefreshUseCase
	logger    port.LoggerPort
	staleness time.Duration
	// incremental is false for export-only backends (csv); refresh requests
	// are then rejected up front instead of failing mid-run.
	incremental bool
}

func NewScrapeHandlers(
	searchUC *usecase.SearchScrapeUseCase,
	refreshUC *usecase.CalendarRefreshUseCase,
	logger port.LoggerPort,
	staleness time.Duration,
	incremental bool,
) *ScrapeHandlers {
	return &ScrapeHandlers{
		searchUC:    searchUC,
		refreshUC:   refreshUC,
		logger:      logger,
		staleness:   staleness,
		incremental: incremental,
	}
}

func (h *ScrapeHandlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "SearchHandler: invalid request body")
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "SearchHandler: query is required")
		return
	}

	filters := domain.SearchFilters{
		RoomTypes: req.RoomTypes,
		Checkin:   req.Checkin,
		Checkout:  req.Checkout,
		PriceMin:  req.PriceMin,
		PriceMax:  req.PriceMax,
	}

	runID := uuid.NewString()
	ctx := h.runContext(runID)
	logger := contextkeys.LoggerFromContext(ctx)

	go func() {
		if err := h.searchUC.Execute(ctx, req.Query, filters); err != nil {
			logger.Error("Search run failed", err, port.Fields{"query": req.Query})
		}
	}()

	writeJSON(w, http.StatusAccepted, RunResponse{RunID: runID})
}

func (h *ScrapeHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.incremental {
		writeJSONError(w, http.StatusBadRequest,
			"RefreshHandler: csv storage does not support incremental refresh; use elasticsearch or postgres")
		return
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "RefreshHandler: invalid request body")
		return
	}

	olderThan := h.staleness
	if req.UpdatedWithin != "" {
		parsed, err := time.ParseDuration(req.UpdatedWithin)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "RefreshHandler: invalid updated_within value")
			return
		}
		olderThan = parsed
	}

	runID := uuid.NewString()
	ctx := h.runContext(runID)
	logger := contextkeys.LoggerFromContext(ctx)

	go func() {
		var err error
		if req.ListingID != "" {
			err = h.refreshUC.RefreshOne(ctx, req.ListingID)
		} else {
			err = h.refreshUC.ExecuteAll(ctx, olderThan)
		}
		if err != nil {
			logger.Error("Refresh run failed", err, port.Fields{"listing_id": req.ListingID})
		}
	}()

	writeJSON(w, http.StatusAccepted, RunResponse{RunID: runID})
}

func (h *ScrapeHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runContext builds a background context for an accepted run: detached from
// the request (which ends at the 202), carrying the run id in both the trace
// context and the logger fields.
func (h *ScrapeHandlers) runContext(runID string) context.Context {
	ctx := contextkeys.ContextWithTraceID(context.Background(), runID)
	return contextkeys.ContextWithLogger(ctx, h.logger.WithFields(port.Fields{"run_id": runID}))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
