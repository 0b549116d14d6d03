package observer

import (
	"context"
	"encoding/json"

	"github.com/JakeFAU/siteclone/internal/transport/socketio"
)

// Feed delivers raw event arguments for one channel in arrival order. The
// channel is closed when the underlying connection ends.
type Feed interface {
	Messages() <-chan json.RawMessage
	Close()
}

// Transport is the real-time channel the observer talks over.
type Transport interface {
	Emit(ctx context.Context, event string, payload any) error
	Subscribe(event string) Feed
}

// SocketTransport adapts a socketio.Client.
type SocketTransport struct {
	Client *socketio.Client
	// Buffer sizes each subscription channel.
	Buffer int
}

// Emit implements Transport.
func (t SocketTransport) Emit(ctx context.Context, event string, payload any) error {
	return t.Client.Emit(ctx, event, payload)
}

// Subscribe implements Transport.
func (t SocketTransport) Subscribe(event string) Feed {
	return socketFeed{sub: t.Client.Subscribe(event, t.Buffer)}
}

type socketFeed struct {
	sub *socketio.Subscription
}

func (f socketFeed) Messages() <-chan json.RawMessage { return f.sub.C }

func (f socketFeed) Close() { f.sub.Unsubscribe() }
