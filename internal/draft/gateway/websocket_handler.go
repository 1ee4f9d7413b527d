package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"awards-draft-backend/internal/draft/events"
)

// EventSource replays retained events for reconnect catch-up.
type EventSource interface {
	EventsSince(ctx context.Context, draftID uuid.UUID, afterVersion int64) ([]events.DraftEvent, error)
}

// WebSocketHandler upgrades HTTP requests onto the draft event stream.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	source            EventSource
}

// NewWebSocketHandler creates a handler. source may be nil to disable
// reconnect catch-up.
func NewWebSocketHandler(cm *ConnectionManager, source EventSource) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, source: source}
}

// HandleDraftConnection connects a client to one draft's event stream.
// Query parameters: draft_id (required), user_id (optional), last_version
// (optional; replays retained events after that version on connect).
func (h *WebSocketHandler) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	draftIDStr := r.URL.Query().Get("draft_id")
	if draftIDStr == "" {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}
	draftID, err := uuid.Parse(draftIDStr)
	if err != nil {
		http.Error(w, "invalid draft_id format", http.StatusBadRequest)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	var lastVersion int64 = -1
	if lv := r.URL.Query().Get("last_version"); lv != "" {
		lastVersion, err = strconv.ParseInt(lv, 10, 64)
		if err != nil || lastVersion < 0 {
			http.Error(w, "invalid last_version", http.StatusBadRequest)
			return
		}
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, userID, draftID)
	if err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("WebSocket upgrade failed")
		return
	}

	// Replay after registration: a concurrent live event may arrive twice,
	// which clients ignore by version.
	if lastVersion >= 0 && h.source != nil {
		replay, err := h.source.EventsSince(r.Context(), draftID, lastVersion)
		if err != nil {
			log.Error().Err(err).
				Str("draft_id", draftID.String()).
				Msg("catch-up replay failed; client will resync from snapshot")
			return
		}
		for _, event := range replay {
			if !conn.SendEvent(event) {
				break
			}
		}
	}
}

// HandleConnectionStats reports pool sizes as JSON.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.ConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}
