package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the HTTP surface. The provisioning routes are optional and
// only mounted when a room store is configured.
func NewRouter(ws *WSHandler, rooms *RoomsHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.HandleFunc("/ws", ws.ServeWS)

	if rooms != nil {
		r.HandleFunc("/api/rooms", rooms.Create).Methods(http.MethodPost)
		r.HandleFunc("/api/rooms/{code}", rooms.Detail).Methods(http.MethodGet)
		r.HandleFunc("/api/lobby", rooms.Lobby).Methods(http.MethodGet)
	}
	return r
}
