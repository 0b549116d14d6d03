// Package status holds the decorative status bar shown alongside progress:
// the wall clock and the client's public IP.
package status

import "sync"

// FallbackIP is shown when the public IP cannot be determined.
const FallbackIP = "127.0.0.1"

// Snapshot is a point-in-time copy of the bar.
type Snapshot struct {
	Time string `json:"time"`
	IP   string `json:"ip"`
}

// Bar is safe for concurrent use.
type Bar struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewBar returns a bar showing the fallback IP until a lookup completes.
func NewBar() *Bar {
	return &Bar{snap: Snapshot{IP: FallbackIP}}
}

// SetTime replaces the displayed time.
func (b *Bar) SetTime(v string) {
	b.mu.Lock()
	b.snap.Time = v
	b.mu.Unlock()
}

// SetIP replaces the displayed IP. Empty values reset to FallbackIP.
func (b *Bar) SetIP(v string) {
	if v == "" {
		v = FallbackIP
	}
	b.mu.Lock()
	b.snap.IP = v
	b.mu.Unlock()
}

// Snapshot returns the current values.
func (b *Bar) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// String renders the bar as a single line.
func (s Snapshot) String() string {
	if s.Time == "" {
		return s.IP
	}
	return s.Time + " | " + s.IP
}
