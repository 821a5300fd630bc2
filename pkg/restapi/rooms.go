package restapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type roomHandler struct {
	m Manager
}

func newRoomHandler(m Manager) *roomHandler {
	return &roomHandler{m: m}
}

func (h *roomHandler) handle(r chi.Router) {
	r.Get("/rooms", h.getRooms)
}

func (h *roomHandler) getRooms(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, h.m.Stats().PoolData)
}
