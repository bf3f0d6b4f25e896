package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/scan"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// OpportunityHandler handles the discovery scan API endpoints
// ⭐ SSOT: 기회 탐색 API 핸들러는 이 구조체에서만
type OpportunityHandler struct {
	orchestrator *scan.Orchestrator
	store        contracts.ResultStore
	history      contracts.ScanHistory
	logger       *logger.Logger
}

// NewOpportunityHandler creates a new opportunity handler. history may
// be nil when no database is configured.
func NewOpportunityHandler(
	orchestrator *scan.Orchestrator,
	store contracts.ResultStore,
	history contracts.ScanHistory,
	log *logger.Logger,
) *OpportunityHandler {
	return &OpportunityHandler{
		orchestrator: orchestrator,
		store:        store,
		history:      history,
		logger:       log,
	}
}

// DiscoverRequest is the POST body of a discovery scan start
type DiscoverRequest struct {
	ForceRefresh  bool                    `json:"force_refresh"`
	Limit         int                     `json:"limit,omitempty"`
	MinConfidence float64                 `json:"min_confidence,omitempty"`
	RiskTolerance contracts.RiskTolerance `json:"risk_tolerance,omitempty"`
}

// StatusResponse is the polling view of one scan's record
type StatusResponse struct {
	ScanID              string                                   `json:"scan_id"`
	State               contracts.ScanState                      `json:"state"`
	StrategiesCompleted int                                      `json:"strategies_completed"`
	StrategiesTotal     int                                      `json:"strategies_total"`
	Opportunities       []contracts.Opportunity                  `json:"opportunities"`
	StrategyPerformance map[string]contracts.StrategyPerformance `json:"strategy_performance"`
}

// Discover starts a discovery scan and returns immediately
// POST /api/opportunities/discover
func (h *OpportunityHandler) Discover(w http.ResponseWriter, r *http.Request) {
	userID := identify(r)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Missing X-User-ID header")
		return
	}

	var body DiscoverRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	req := contracts.ScanRequest{
		UserID:        userID,
		ForceRefresh:  body.ForceRefresh,
		Limit:         body.Limit,
		MinConfidence: body.MinConfidence,
		RiskTolerance: body.RiskTolerance,
	}

	result, err := h.orchestrator.StartScan(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrNoEligibleStrategies):
			respondError(w, http.StatusForbidden, "No eligible strategies for user")
		case errors.Is(err, scan.ErrUniverseUnavailable):
			respondError(w, http.StatusServiceUnavailable, "Asset universe unavailable")
		case errors.Is(err, scan.ErrRateLimited):
			respondError(w, http.StatusTooManyRequests, "Scan start rate limit exceeded")
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	status := http.StatusAccepted
	if result.Reused {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

// Status returns the current view of one scan. Any accepted scan
// resolves here until its TTL genuinely expires; not_found is synthetic
// and only appears once both lookup layers miss.
// GET /api/opportunities/status/{scan_id}
func (h *OpportunityHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scanID := mux.Vars(r)["scan_id"]

	cacheKey, err := h.store.ResolveCacheKey(ctx, scanID)
	if err != nil {
		h.logger.WithError(err).WithField("scan_id", scanID).Error("Lookup resolution failed")
		respondError(w, http.StatusInternalServerError, "Failed to resolve scan")
		return
	}

	if cacheKey == "" {
		respondJSON(w, http.StatusOK, StatusResponse{ScanID: scanID, State: contracts.ScanStateNotFound})
		return
	}

	record, err := h.store.Get(ctx, cacheKey)
	if err != nil {
		h.logger.WithError(err).WithField("scan_id", scanID).Error("Record fetch failed")
		respondError(w, http.StatusInternalServerError, "Failed to fetch scan record")
		return
	}
	if record == nil || record.ScanID != scanID {
		respondJSON(w, http.StatusOK, StatusResponse{ScanID: scanID, State: contracts.ScanStateNotFound})
		return
	}

	respondJSON(w, http.StatusOK, statusFromRecord(record, limitParam(r)))
}

// Latest returns the caller's most recent scan, mid-flight or finished
// GET /api/opportunities/latest
func (h *OpportunityHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := identify(r)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Missing X-User-ID header")
		return
	}

	cacheKey, err := h.store.ResolveLatestCacheKey(ctx, userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Latest lookup failed")
		respondError(w, http.StatusInternalServerError, "Failed to resolve latest scan")
		return
	}

	var record *contracts.ScanRecord
	if cacheKey != "" {
		record, err = h.store.Get(ctx, cacheKey)
		if err != nil {
			h.logger.WithError(err).WithField("user_id", userID).Error("Record fetch failed")
			respondError(w, http.StatusInternalServerError, "Failed to fetch scan record")
			return
		}
	}

	if record == nil {
		respondJSON(w, http.StatusOK, StatusResponse{State: contracts.ScanStateNotFound})
		return
	}

	respondJSON(w, http.StatusOK, statusFromRecord(record, limitParam(r)))
}

// History returns the caller's archived scans
// GET /api/opportunities/history
func (h *OpportunityHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := identify(r)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Missing X-User-ID header")
		return
	}

	if h.history == nil {
		respondError(w, http.StatusNotImplemented, "Scan history is not configured")
		return
	}

	scans, err := h.history.RecentScans(r.Context(), userID, limitParam(r))
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("History query failed")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve scan history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"scans":   scans,
	})
}

// statusFromRecord projects a record into the polling response,
// truncating opportunities when a limit is requested
func statusFromRecord(record *contracts.ScanRecord, limit int) StatusResponse {
	opps := record.Opportunities
	if limit > 0 && len(opps) > limit {
		opps = opps[:limit]
	}

	return StatusResponse{
		ScanID:              record.ScanID,
		State:               record.State,
		StrategiesCompleted: record.StrategiesCompleted,
		StrategiesTotal:     record.StrategiesTotal,
		Opportunities:       opps,
		StrategyPerformance: record.StrategyPerformance,
	}
}

// identify extracts the authenticated user from the request. Upstream
// auth terminates at the gateway; this service trusts the header it
// forwards.
func identify(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
