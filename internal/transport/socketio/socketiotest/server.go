// Package socketiotest provides an in-process Socket.IO server for tests.
package socketiotest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handler runs once per accepted connection after the namespace handshake.
type Handler func(conn *Conn)

// Options tunes the handshake the server advertises.
type Options struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
	// RejectConnect makes the server answer the namespace connect with an error.
	RejectConnect string
}

// Server is a websocket-only Socket.IO endpoint mounted at /socket.io/.
type Server struct {
	*httptest.Server

	opts     Options
	handler  Handler
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu    sync.Mutex
	conns []*Conn
	wg    sync.WaitGroup
}

// NewServer starts a server that invokes handler for each client.
func NewServer(opts Options, handler Handler) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 20 * time.Second
	}
	s := &Server{opts: opts, handler: handler, mux: http.NewServeMux()}
	s.mux.HandleFunc("/socket.io/", s.serve)
	s.Server = httptest.NewServer(s.mux)
	return s
}

// Handle registers an extra plain HTTP route, e.g. archive downloads.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Close disconnects all clients and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.ws.Close()
	}
	s.mu.Unlock()
	s.Server.Close()
	s.wg.Wait()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &Conn{ws: ws}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	s.wg.Add(1)
	defer s.wg.Done()
	defer func() { _ = ws.Close() }()

	open, _ := json.Marshal(map[string]any{
		"sid":          "test-sid",
		"upgrades":     []string{},
		"pingInterval": s.opts.PingInterval.Milliseconds(),
		"pingTimeout":  s.opts.PingTimeout.Milliseconds(),
		"maxPayload":   1000000,
	})
	if err := conn.WriteRaw("0" + string(open)); err != nil {
		return
	}
	frame, err := conn.ReadRaw()
	if err != nil || frame != "40" {
		return
	}
	if s.opts.RejectConnect != "" {
		_ = conn.WriteRaw(`44{"message":"` + s.opts.RejectConnect + `"}`)
		return
	}
	if err := conn.WriteRaw(`40{"sid":"test-socket"}`); err != nil {
		return
	}
	if s.handler != nil {
		s.handler(conn)
	}
}

// Conn is the server side of one client connection.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// ErrDisconnect is returned by ReadEvent when the client sent a disconnect.
var ErrDisconnect = errors.New("client disconnected")

// WriteRaw sends a text frame verbatim.
func (c *Conn) WriteRaw(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// ReadRaw reads the next text frame.
func (c *Conn) ReadRaw() (string, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind == websocket.TextMessage {
			return string(data), nil
		}
	}
}

// Emit sends `42["event",payload]`.
func (c *Conn) Emit(event string, payload any) error {
	body, err := json.Marshal([]any{event, payload})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return c.WriteRaw("42" + string(body))
}

// Ping sends an engine ping.
func (c *Conn) Ping() error {
	return c.WriteRaw("2")
}

// ReadEvent returns the next event the client emitted, skipping pongs.
func (c *Conn) ReadEvent() (string, json.RawMessage, error) {
	for {
		frame, err := c.ReadRaw()
		if err != nil {
			return "", nil, err
		}
		switch {
		case frame == "3":
			continue
		case frame == "41":
			return "", nil, ErrDisconnect
		case len(frame) > 2 && frame[:2] == "42":
			var parts []json.RawMessage
			if err := json.Unmarshal([]byte(frame[2:]), &parts); err != nil || len(parts) == 0 {
				return "", nil, fmt.Errorf("bad event frame %q", frame)
			}
			var name string
			if err := json.Unmarshal(parts[0], &name); err != nil {
				return "", nil, fmt.Errorf("bad event name in %q", frame)
			}
			if len(parts) < 2 {
				return name, json.RawMessage("null"), nil
			}
			return name, parts[1], nil
		}
	}
}

// Disconnect ends the namespace session from the server side.
func (c *Conn) Disconnect() error {
	return c.WriteRaw("41")
}
