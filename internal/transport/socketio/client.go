// Package socketio is a minimal Socket.IO v5 client speaking the Engine.IO v4
// websocket transport. It supports the default namespace, emitting events and
// subscribing to events by name.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteclone/internal/metrics"
	"github.com/JakeFAU/siteclone/internal/retry"
)

// DefaultPath is the Socket.IO endpoint path.
const DefaultPath = "/socket.io/"

var (
	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("socketio: client closed")
	// ErrPingTimeout is recorded when the server stops pinging.
	ErrPingTimeout = errors.New("socketio: ping timeout")
	// ErrDisconnected is recorded when the server ends the session.
	ErrDisconnected = errors.New("socketio: server disconnected")
	// ErrConnectRefused is returned when the server rejects the namespace connect.
	ErrConnectRefused = errors.New("socketio: connect refused")
)

// Config controls how a Client dials.
type Config struct {
	// URL is the service base URL (http, https, ws or wss).
	URL string
	// Path overrides DefaultPath.
	Path             string
	Header           http.Header
	HandshakeTimeout time.Duration
	Retry            retry.Policy
	Logger           *zap.Logger
}

// Client is a connected Socket.IO session. It is safe for concurrent use.
type Client struct {
	conn      *websocket.Conn
	handshake Handshake
	logger    *zap.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	ended  bool
	endErr error

	pinged    chan struct{}
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Subscription delivers the first argument of each matching event in arrival
// order. C is closed when the client shuts down.
type Subscription struct {
	C <-chan json.RawMessage

	ch     chan json.RawMessage
	event  string
	client *Client
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe stops delivery. No values are sent on C afterwards.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.client.mu.Lock()
		if set, ok := s.client.subs[s.event]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.client.subs, s.event)
			}
		}
		s.client.mu.Unlock()
	})
}

// Event is the subscribed event name.
func (s *Subscription) Event() string {
	return s.event
}

// Endpoint builds the websocket URL for base and path.
func Endpoint(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// Dial connects to the server, performs the Engine.IO and namespace
// handshakes and starts the read loop. Refused or timed-out connections are
// retried under cfg.Retry; a 4xx upgrade answer is not.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	endpoint, err := Endpoint(cfg.URL, cfg.Path)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("socketio")
	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.Default()
	}
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var client *Client
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			metrics.IncDialRetries()
		}
		c, err := dialOnce(ctx, endpoint, cfg.Header, timeout, logger)
		if err != nil {
			logger.Warn("dial failed", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return client, nil
}

func dialOnce(ctx context.Context, endpoint string, header http.Header, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Permanent(fmt.Errorf("websocket upgrade: %s: %w", resp.Status, err))
		}
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	hs, err := openSession(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:      conn,
		handshake: hs,
		logger:    logger.With(zap.String("sid", hs.SID)),
		subs:      make(map[string]map[*Subscription]struct{}),
		pinged:    make(chan struct{}, 1),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	go c.watchdog()
	c.logger.Debug("connected",
		zap.Duration("ping_interval", time.Duration(hs.PingInterval)*time.Millisecond),
		zap.Duration("ping_timeout", time.Duration(hs.PingTimeout)*time.Millisecond),
	)
	return c, nil
}

// openSession reads the engine open packet and connects the default namespace.
func openSession(conn *websocket.Conn) (Handshake, error) {
	frame, err := readFrame(conn)
	if err != nil {
		return Handshake{}, fmt.Errorf("read open packet: %w", err)
	}
	p, err := parsePacket(frame)
	if err != nil {
		return Handshake{}, retry.Permanent(err)
	}
	if p.Engine != engineOpen {
		return Handshake{}, retry.Permanent(fmt.Errorf("%w: expected open, got %q", ErrMalformedPacket, p.Engine))
	}
	hs, err := parseHandshake(p.Data)
	if err != nil {
		return Handshake{}, retry.Permanent(err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte{engineMessage, socketConnect}); err != nil {
		return Handshake{}, fmt.Errorf("send connect: %w", err)
	}
	for {
		frame, err := readFrame(conn)
		if err != nil {
			return Handshake{}, fmt.Errorf("read connect ack: %w", err)
		}
		p, err := parsePacket(frame)
		if err != nil {
			return Handshake{}, retry.Permanent(err)
		}
		switch {
		case p.Engine == enginePing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{enginePong}); err != nil {
				return Handshake{}, fmt.Errorf("send pong: %w", err)
			}
		case p.Engine == engineMessage && p.Socket == socketConnect:
			return hs, nil
		case p.Engine == engineMessage && p.Socket == socketConnectError:
			return Handshake{}, retry.Permanent(fmt.Errorf("%w: %s", ErrConnectRefused, connectErrorMessage(p.Data)))
		}
	}
}

func readFrame(conn *websocket.Conn) ([]byte, error) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

// Handshake returns the negotiated session parameters.
func (c *Client) Handshake() Handshake {
	return c.handshake
}

// Emit sends an event with a single JSON argument.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}
	return c.write(ctx, frame)
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	select {
	case <-c.closing:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Subscribe registers interest in event. buf sizes the delivery channel.
func (c *Client) Subscribe(event string, buf int) *Subscription {
	if buf < 0 {
		buf = 0
	}
	ch := make(chan json.RawMessage, buf)
	s := &Subscription{C: ch, ch: ch, event: event, client: c, done: make(chan struct{})}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		close(ch)
		return s
	}
	set, ok := c.subs[event]
	if !ok {
		set = make(map[*Subscription]struct{})
		c.subs[event] = set
	}
	set[s] = struct{}{}
	return s
}

// Done is closed once the read loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the client ended, or nil while it is running or after a
// clean Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endErr
}

// Close disconnects from the server and waits for the read loop to exit.
func (c *Client) Close() error {
	select {
	case <-c.closing:
	default:
		_ = c.write(context.Background(), []byte{engineMessage, socketDisconnect})
	}
	c.shutdown(nil)
	<-c.done
	return nil
}

func (c *Client) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.endErr = reason
		c.mu.Unlock()
		close(c.closing)
		_ = c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.ended = true
		for _, set := range c.subs {
			for s := range set {
				close(s.ch)
			}
		}
		c.subs = map[string]map[*Subscription]struct{}{}
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		frame, err := readFrame(c.conn)
		if err != nil {
			c.shutdown(fmt.Errorf("read frame: %w", err))
			return
		}
		p, err := parsePacket(frame)
		if err != nil {
			c.logger.Debug("dropping frame", zap.Error(err))
			continue
		}
		switch p.Engine {
		case enginePing:
			select {
			case c.pinged <- struct{}{}:
			default:
			}
			if err := c.write(context.Background(), []byte{enginePong}); err != nil {
				c.shutdown(err)
				return
			}
		case engineClose:
			c.shutdown(ErrDisconnected)
			return
		case engineMessage:
			if !c.handleMessage(p) {
				return
			}
		case enginePong, engineNoop:
		default:
			c.logger.Debug("ignoring engine packet", zap.String("type", string(p.Engine)))
		}
	}
}

func (c *Client) handleMessage(p packet) bool {
	if p.Namespace != "" && p.Namespace != "/" {
		return true
	}
	switch p.Socket {
	case socketEvent:
		name, arg, err := decodeEvent(p.Data)
		if err != nil {
			c.logger.Debug("dropping event", zap.Error(err))
			return true
		}
		c.dispatch(name, arg)
	case socketDisconnect:
		c.shutdown(ErrDisconnected)
		return false
	}
	return true
}

func (c *Client) dispatch(name string, arg json.RawMessage) {
	c.mu.Lock()
	targets := make([]*Subscription, 0, len(c.subs[name]))
	for s := range c.subs[name] {
		targets = append(targets, s)
	}
	c.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- arg:
		case <-s.done:
		case <-c.closing:
			return
		}
	}
}

func (c *Client) watchdog() {
	limit := c.handshake.Deadline()
	timer := time.NewTimer(limit)
	defer timer.Stop()
	for {
		select {
		case <-c.closing:
			return
		case <-c.pinged:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(limit)
		case <-timer.C:
			c.logger.Warn("server ping overdue", zap.Duration("limit", limit))
			c.shutdown(ErrPingTimeout)
			return
		}
	}
}
