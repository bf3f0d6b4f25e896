package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/internal/scan"
	"github.com/cryptouniverse/discovery/internal/store"
	"github.com/cryptouniverse/discovery/internal/strategies"
	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

type stubEvaluator struct {
	id   string
	opps []contracts.Opportunity
}

func (s *stubEvaluator) ID() string { return s.id }

func (s *stubEvaluator) Evaluate(ctx context.Context, userID string, universe *contracts.Universe) ([]contracts.Opportunity, error) {
	return s.opps, nil
}

type stubProvider struct{}

func (stubProvider) GetUniverse(ctx context.Context, userID string) (*contracts.Universe, error) {
	return &contracts.Universe{
		AsOf:  time.Now().UTC(),
		Tier1: []string{"BTC/USDT", "ETH/USDT"},
	}, nil
}

type stubFeed struct{}

func (stubFeed) Stats(ctx context.Context, symbol string) (*marketdata.TickerStats, error) {
	return nil, nil
}

func (stubFeed) BatchStats(ctx context.Context, symbols []string) (map[string]*marketdata.TickerStats, error) {
	return map[string]*marketdata.TickerStats{}, nil
}

func (stubFeed) TopByQuoteVolume(ctx context.Context, n int) ([]*marketdata.TickerStats, error) {
	return []*marketdata.TickerStats{{Symbol: "BTC/USDT", QuoteVolume: 900}}, nil
}

type handlerFixture struct {
	handler      *OpportunityHandler
	orchestrator *scan.Orchestrator
	store        *store.Store
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "json",
		Scan: config.ScanConfig{
			OverallBudget:  2 * time.Second,
			StrategyBudget: 2 * time.Second,
			Concurrency:    2,
			ResultTTL:      time.Minute,
			LookupTTL:      time.Minute,
			FreeStrategies: []string{"momentum", "breakout"},
		},
	}
	cfg.Redis.Enabled = false

	client, err := redis.New(cfg)
	require.NoError(t, err)
	log := logger.New(cfg)

	registry := strategies.NewRegistry()
	require.NoError(t, registry.Register(&stubEvaluator{id: "momentum", opps: []contracts.Opportunity{
		{Symbol: "BTC/USDT", Strategy: "momentum", Confidence: 80, Action: contracts.ActionBuy},
		{Symbol: "ETH/USDT", Strategy: "momentum", Confidence: 70, Action: contracts.ActionBuy},
	}}))
	require.NoError(t, registry.Register(&stubEvaluator{id: "breakout"}))

	resultStore := store.New(cfg, store.NewMemoryStore(), store.NewDurableStore(client), log)
	fallback := strategies.NewMarketWatchGenerator(stubFeed{}, log)
	entitlements := scan.NewEntitlements(cfg, client, log)

	orchestrator := scan.NewOrchestrator(cfg, resultStore, stubProvider{}, registry,
		fallback, entitlements, nil, nil, log)

	return &handlerFixture{
		handler:      NewOpportunityHandler(orchestrator, resultStore, nil, log),
		orchestrator: orchestrator,
		store:        resultStore,
	}
}

func discoverRequest(userID string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/opportunities/discover",
		bytes.NewBufferString(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return req
}

func TestDiscover_RequiresIdentity(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Discover(rec, discoverRequest("", "{}"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDiscover_RejectsMalformedBody(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Discover(rec, discoverRequest("u1", "{not json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiscover_AcceptsAndStatusResolvesImmediately(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Discover(rec, discoverRequest("u1", `{"force_refresh": false}`))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started scan.StartResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ScanID)
	assert.Equal(t, contracts.ScanStateInitiated, started.State)

	// Poll right away: the placeholder must already resolve
	statusRec := httptest.NewRecorder()
	statusReq := mux.SetURLVars(
		httptest.NewRequest(http.MethodGet, "/api/opportunities/status/"+started.ScanID, nil),
		map[string]string{"scan_id": started.ScanID})
	f.handler.Status(statusRec, statusReq)

	require.Equal(t, http.StatusOK, statusRec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &status))
	assert.Equal(t, started.ScanID, status.ScanID)
	assert.NotEqual(t, contracts.ScanStateNotFound, status.State)
	assert.Equal(t, 2, status.StrategiesTotal)

	f.orchestrator.Drain()

	// After the fan-out finishes the same endpoint shows the terminal view
	finalRec := httptest.NewRecorder()
	f.handler.Status(finalRec, statusReq)

	var final StatusResponse
	require.NoError(t, json.Unmarshal(finalRec.Body.Bytes(), &final))
	assert.Equal(t, contracts.ScanStateComplete, final.State)
	assert.Equal(t, 2, final.StrategiesCompleted)
	assert.Len(t, final.Opportunities, 2)
}

// Polling is read-only: once a scan settles, asking again must not change
// anything, so two back-to-back status responses are byte-identical.
func TestStatus_TerminalReadsAreIdentical(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Discover(rec, discoverRequest("u1", "{}"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started scan.StartResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	f.orchestrator.Drain()

	statusReq := mux.SetURLVars(
		httptest.NewRequest(http.MethodGet, "/api/opportunities/status/"+started.ScanID, nil),
		map[string]string{"scan_id": started.ScanID})

	first := httptest.NewRecorder()
	f.handler.Status(first, statusReq)
	require.Equal(t, http.StatusOK, first.Code)

	var settled StatusResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &settled))
	require.True(t, settled.State.IsTerminal())

	second := httptest.NewRecorder()
	f.handler.Status(second, statusReq)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.Body.String(), second.Body.String(),
		"repeated polls of a settled scan must not drift")
}

func TestStatus_UnknownScanIsSyntheticNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	req := mux.SetURLVars(
		httptest.NewRequest(http.MethodGet, "/api/opportunities/status/nope", nil),
		map[string]string{"scan_id": "nope"})
	f.handler.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "polling clients never see a bare 404")

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, contracts.ScanStateNotFound, status.State)
}

func TestStatus_LimitTruncates(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Discover(rec, discoverRequest("u1", "{}"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started scan.StartResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	f.orchestrator.Drain()

	statusRec := httptest.NewRecorder()
	statusReq := mux.SetURLVars(
		httptest.NewRequest(http.MethodGet, "/api/opportunities/status/"+started.ScanID+"?limit=1", nil),
		map[string]string{"scan_id": started.ScanID})
	f.handler.Status(statusRec, statusReq)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &status))
	assert.Len(t, status.Opportunities, 1)
}

func TestLatest(t *testing.T) {
	f := newHandlerFixture(t)

	// Nothing scanned yet
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/opportunities/latest", nil)
	req.Header.Set("X-User-ID", "u1")
	f.handler.Latest(rec, req)

	var empty StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Equal(t, contracts.ScanStateNotFound, empty.State)

	// Scan, then the latest lookup resolves
	discoverRec := httptest.NewRecorder()
	f.handler.Discover(discoverRec, discoverRequest("u1", "{}"))
	require.Equal(t, http.StatusAccepted, discoverRec.Code)
	f.orchestrator.Drain()

	latestRec := httptest.NewRecorder()
	f.handler.Latest(latestRec, req)

	var latest StatusResponse
	require.NoError(t, json.Unmarshal(latestRec.Body.Bytes(), &latest))
	assert.Equal(t, contracts.ScanStateComplete, latest.State)
	assert.NotEmpty(t, latest.Opportunities)
}

func TestHistory_NotConfigured(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/opportunities/history", nil)
	req.Header.Set("X-User-ID", "u1")
	f.handler.History(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestDiscover_SecondCallReusesLiveScan(t *testing.T) {
	f := newHandlerFixture(t)

	first := httptest.NewRecorder()
	f.handler.Discover(first, discoverRequest("u1", "{}"))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	f.handler.Discover(second, discoverRequest("u1", "{}"))

	// A live scan is handed back instead of fanning out again
	if second.Code == http.StatusOK {
		var result scan.StartResult
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &result))
		assert.True(t, result.Reused)
	} else {
		// The first fan-out may already have finalized on a fast machine
		assert.Equal(t, http.StatusAccepted, second.Code)
	}

	f.orchestrator.Drain()
}
