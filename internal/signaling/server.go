package signaling

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/rtcmesh/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes a Relay over WebSocket at /ws. Clients pick their room and
// display name with the room and name query parameters.
type Server struct {
	relay    *Relay
	listener net.Listener
	srv      *http.Server
}

// NewServer creates a relay server backed by relay.
func NewServer(relay *Relay) *Server {
	return &Server{relay: relay}
}

// Handler returns the HTTP handler serving /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start begins listening on addr (":0" picks a random port) and returns the
// bound address.
func (s *Server) Start(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start relay server: %w", err)
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("relay server stopped: %v", err)
		}
	}()

	return listener.Addr(), nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	name := r.URL.Query().Get("name")
	if room == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ws := &wsSink{conn: conn}
	id := s.relay.join(room, name, ws)
	defer s.relay.leave(room, id)
	util.LogInfo("relay: %s (%s) joined room %q", id, name, room)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			util.LogInfo("relay: %s left room %q", id, room)
			return
		}
		if err := s.relay.route(room, id, msg); err != nil {
			util.LogWarning("relay: dropping %s from %s: %v", msg.Type, id, err)
		}
	}
}

// Close stops accepting clients. Upgraded connections end when their
// clients disconnect.
func (s *Server) Close() error {
	if s.srv != nil {
		return s.srv.Close()
	}
	return nil
}

// wsSink delivers relay messages to one WebSocket client.
type wsSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSink) deliver(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}
