package restapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/isaackogan/TikTokLive-Server/internal/room"
	"github.com/isaackogan/TikTokLive-Server/pkg/webcast"
)

// Text commands a consumer may send over an established connection.
const (
	commandRoomInfo = "operation.room_info"
	commandSubInfo  = "operation.sub_info"
)

type wsHandler struct {
	logger zerolog.Logger
	m      Manager
}

func newWSHandler(logger zerolog.Logger, m Manager) *wsHandler {
	return &wsHandler{
		logger: logger.With().Str("component", "ws").Logger(),
		m:      m,
	}
}

// serve upgrades the request and attaches the consumer to the creator's
// room until either side disconnects.
//
// The api_key doubles as the account name. It is not validated beyond
// presence.
func (h *wsHandler) serve(w http.ResponseWriter, r *http.Request) {
	uniqueID := r.URL.Query().Get("unique_id")
	apiKey := r.URL.Query().Get("api_key")

	if uniqueID == "" || apiKey == "" {
		writeError(w, "unique_id and api_key query parameters are required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx := r.Context()

	h.logger.Info().Str("unique_id", uniqueID).Msg("new websocket connection")

	client, err := h.m.Join(ctx, apiKey, uniqueID)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, joinFailureReason(err))
		return
	}

	defer h.m.Leave(client, apiKey)

	go h.writePump(ctx, conn, client)
	h.readPump(ctx, conn, client)
}

func joinFailureReason(err error) string {
	switch {
	case errors.Is(err, webcast.ErrUserOffline):
		return "user is not live"
	case errors.Is(err, room.ErrRoomClosed):
		return "room is closed"
	default:
		return "failed to join room"
	}
}

// writePump delivers the client's outbox. The outbox is closed when the
// client leaves its room, which also ends the connection.
func (h *wsHandler) writePump(ctx context.Context, conn *websocket.Conn, client *room.Client) {
	for {
		select {
		case msg, ok := <-client.Outbox():
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			err := conn.Write(ctx, websocket.MessageText, msg)
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// readPump handles operation commands until the consumer disconnects.
func (h *wsHandler) readPump(ctx context.Context, conn *websocket.Conn, client *room.Client) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.logger.Debug().Err(err).Str("client_id", client.ID()).Msg("websocket read failed")
			}

			return
		}

		switch string(data) {
		case commandRoomInfo:
			client.Room().FetchRoomInfo(client)

		case commandSubInfo:
			err = client.Room().FetchSubInfo(ctx, client)
			if err != nil {
				h.logger.Warn().Err(err).Str("client_id", client.ID()).Msg("sub info fetch failed")
			}

		default:
			// Unknown commands are ignored.
		}
	}
}

// getStats reports the state of all websocket connections.
// The response shape is the raw stats document, not the API envelope.
func (h *wsHandler) getStats(w http.ResponseWriter, _ *http.Request) {
	err := json.NewEncoder(w).Encode(h.m.Stats())
	if err != nil {
		h.logger.Error().Err(err).Msg("stats encoding failed")
	}
}
