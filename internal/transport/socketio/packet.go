package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Engine.IO v4 packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside engine message packets.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketConnectError byte = '4'
)

// ErrMalformedPacket is returned when a frame cannot be decoded.
var ErrMalformedPacket = errors.New("malformed packet")

// Handshake is the payload of the engine open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// Deadline is the longest the client waits between server pings.
func (h Handshake) Deadline() time.Duration {
	return time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
}

// packet is a decoded frame. Socket is zero for non-message engine packets.
type packet struct {
	Engine    byte
	Socket    byte
	Namespace string
	Data      []byte
}

func parsePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, fmt.Errorf("%w: empty frame", ErrMalformedPacket)
	}
	p := packet{Engine: frame[0], Data: frame[1:]}
	if p.Engine != engineMessage {
		return p, nil
	}
	if len(p.Data) == 0 {
		return packet{}, fmt.Errorf("%w: empty message", ErrMalformedPacket)
	}
	p.Socket = p.Data[0]
	rest := p.Data[1:]
	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			rest = nil
		} else {
			p.Namespace = string(rest[:end])
			rest = rest[end+1:]
		}
	}
	// Skip an ack id.
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	p.Data = rest[i:]
	return p, nil
}

func parseHandshake(data []byte) (Handshake, error) {
	var h Handshake
	if err := json.Unmarshal(data, &h); err != nil {
		return Handshake{}, fmt.Errorf("%w: handshake: %w", ErrMalformedPacket, err)
	}
	if h.PingInterval <= 0 || h.PingTimeout <= 0 {
		return Handshake{}, fmt.Errorf("%w: handshake missing ping timings", ErrMalformedPacket)
	}
	return h, nil
}

// encodeEvent builds `42["name",payload]`.
func encodeEvent(name string, payload any) ([]byte, error) {
	body, err := json.Marshal([]any{name, payload})
	if err != nil {
		return nil, fmt.Errorf("encode event %q: %w", name, err)
	}
	out := make([]byte, 0, len(body)+2)
	out = append(out, engineMessage, socketEvent)
	return append(out, body...), nil
}

// decodeEvent splits an event body into its name and first argument. A
// missing argument decodes as JSON null.
func decodeEvent(data []byte) (string, json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("%w: event: %w", ErrMalformedPacket, err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("%w: event without name", ErrMalformedPacket)
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name: %w", ErrMalformedPacket, err)
	}
	if len(parts) < 2 {
		return name, json.RawMessage("null"), nil
	}
	return name, parts[1], nil
}

// connectErrorMessage extracts the message of a connect error packet.
func connectErrorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}
