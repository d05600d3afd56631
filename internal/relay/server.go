// Package relay is a small in-memory room server speaking the same protocol
// as the client gateway. It backs `codesync serve` and the integration tests.
package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMsgRate  = 20 // messages per second per connection
	defaultMsgBurst = 40
	readLimit       = 512 * 1024
	writeTimeout    = 10 * time.Second
)

type Server struct {
	Rooms *Rooms

	// MsgRate and MsgBurst bound how fast one connection may send.
	MsgRate  rate.Limit
	MsgBurst int

	mux *http.ServeMux
}

func NewServer() *Server {
	s := &Server{
		Rooms:    NewRooms(),
		MsgRate:  defaultMsgRate,
		MsgBurst: defaultMsgBurst,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /rooms/{id}", s.handleRoom)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "rooms": s.Rooms.Count()})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"roomId": r.PathValue("id"),
		"users":  s.Rooms.Users(r.PathValue("id")),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
