package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for auction events
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	state             func() StateResponse
}

// NewWebSocketHandler creates a new WebSocket handler. state, if not nil,
// supplies the snapshot sent to each client on connect.
func NewWebSocketHandler(cm *ConnectionManager, state func() StateResponse) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, state: state}
}

type stateSync struct {
	EventType string        `json:"eventType"`
	Payload   StateResponse `json:"payload"`
}

// HandleAuctionConnection upgrades the request and subscribes the client to
// every auction event
func (h *WebSocketHandler) HandleAuctionConnection(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actor_id")
	if actorID == "" {
		actorID = "anonymous"
	}

	var greeting []byte
	if h.state != nil {
		data, err := json.Marshal(stateSync{EventType: "StateSync", Payload: h.state()})
		if err != nil {
			log.Error().Err(err).Msg("failed to encode state sync")
		} else {
			greeting = data
		}
	}

	// on failure the upgrader has already written an error response
	if err := h.connectionManager.UpgradeConnection(w, r, actorID, greeting); err != nil {
		log.Error().Err(err).Str("actor_id", actorID).Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns the number of live connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"total_connections": h.connectionManager.ConnectionCount(),
	})
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/auction", h.HandleAuctionConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
