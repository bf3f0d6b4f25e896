package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

const (
	// streamInterval is how often the stream polls the store for changes
	streamInterval = 500 * time.Millisecond

	streamWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect through the product gateway, which
	// enforces origin policy before this service sees the request.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler pushes scan progress over a websocket so clients can
// watch a scan fill in without polling.
type StreamHandler struct {
	store  contracts.ResultStore
	logger *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(store contracts.ResultStore, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		store:  store,
		logger: log,
	}
}

// Stream upgrades the connection and pushes status updates until the
// scan reaches a terminal state or the client disconnects
// GET /api/opportunities/stream/{scan_id}
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["scan_id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var lastState contracts.ScanState
	lastCompleted := -1

	for {
		status, ok := h.snapshot(ctx, scanID)
		if !ok {
			return
		}

		// Push only on change; the first iteration always pushes
		if status.State != lastState || status.StrategiesCompleted != lastCompleted {
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(status); err != nil {
				return
			}
			lastState = status.State
			lastCompleted = status.StrategiesCompleted
		}

		if status.State.IsTerminal() || status.State == contracts.ScanStateNotFound {
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(status.State)))
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// snapshot fetches the current status view for the streamed scan
func (h *StreamHandler) snapshot(ctx context.Context, scanID string) (StatusResponse, bool) {
	cacheKey, err := h.store.ResolveCacheKey(ctx, scanID)
	if err != nil {
		h.logger.WithError(err).WithField("scan_id", scanID).Warn("Stream lookup failed")
		return StatusResponse{}, false
	}

	if cacheKey == "" {
		return StatusResponse{ScanID: scanID, State: contracts.ScanStateNotFound}, true
	}

	record, err := h.store.Get(ctx, cacheKey)
	if err != nil {
		h.logger.WithError(err).WithField("scan_id", scanID).Warn("Stream record fetch failed")
		return StatusResponse{}, false
	}
	if record == nil || record.ScanID != scanID {
		return StatusResponse{ScanID: scanID, State: contracts.ScanStateNotFound}, true
	}

	return statusFromRecord(record, 0), true
}
