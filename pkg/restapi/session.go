package restapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/isaackogan/TikTokLive-Server/internal/roomsession"
)

type sessionHandler struct {
	sessions SessionGetter
}

func newSessionHandler(sessions SessionGetter) *sessionHandler {
	return &sessionHandler{sessions: sessions}
}

func (h *sessionHandler) handle(r chi.Router) {
	r.Get("/sessions/{id}", h.getSession)
}

type GetSessionOutput struct {
	ID              string `json:"id"`
	UniqueID        string `json:"unique_id"`
	StartedAt       string `json:"started_at"`
	EndedAt         string `json:"ended_at,omitempty"`
	PeakClients     int    `json:"peak_clients"`
	EventsForwarded uint64 `json:"events_forwarded"`
}

func (h *sessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		writeError(w, "session storage is disabled", http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, "missed id", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.Get(id)
	if errors.Is(err, roomsession.ErrNotFound) {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		zlog.Error().Err(err).Str("id", id).Msg("failed to find a session")
		writeError(w, "internal error", http.StatusInternalServerError)

		return
	}

	out := GetSessionOutput{
		ID:              session.ID,
		UniqueID:        session.UniqueID,
		StartedAt:       session.StartedAt.Format(time.RFC3339),
		PeakClients:     session.PeakClients,
		EventsForwarded: session.EventsForwarded,
	}
	if session.EndedAt != nil {
		out.EndedAt = session.EndedAt.Format(time.RFC3339)
	}

	writeResult(w, out)
}
