package session

import (
	"encoding/json"

	"github.com/JakeFAU/siteclone/internal/progress"
)

// DefaultLogCapacity is the number of most recent log entries kept.
const DefaultLogCapacity = 50

// Entry is one rendered log line.
type Entry struct {
	Text  string         `json:"text"`
	Style progress.Style `json:"style,omitempty"`
}

// Log is a fixed-capacity ring of log entries; when full, appending evicts
// the oldest entry. The zero value has DefaultLogCapacity.
//
// Log has value semantics: Append returns a new Log and never modifies the
// receiver's backing storage, so a State copy keeps its own history.
type Log struct {
	buf   []Entry
	start int
	n     int
	cap   int
}

// NewLog returns an empty Log holding at most capacity entries.
func NewLog(capacity int) Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return Log{cap: capacity}
}

// Cap returns the maximum number of entries.
func (l Log) Cap() int {
	if l.cap <= 0 {
		return DefaultLogCapacity
	}
	return l.cap
}

// Len returns the number of entries held.
func (l Log) Len() int {
	return l.n
}

// Append returns a copy of l with e added as the newest entry.
func (l Log) Append(e Entry) Log {
	capacity := l.Cap()
	out := Log{
		buf: make([]Entry, capacity),
		cap: capacity,
	}
	for i := 0; i < l.n; i++ {
		out.buf[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	out.n = l.n
	if out.n < capacity {
		out.buf[out.n] = e
		out.n++
		return out
	}
	out.buf[0] = e
	out.start = 1
	return out
}

// Entries returns the entries oldest first.
func (l Log) Entries() []Entry {
	out := make([]Entry, 0, l.n)
	for i := 0; i < l.n; i++ {
		out = append(out, l.buf[(l.start+i)%len(l.buf)])
	}
	return out
}

// Last returns the newest entry.
func (l Log) Last() (Entry, bool) {
	if l.n == 0 {
		return Entry{}, false
	}
	return l.buf[(l.start+l.n-1)%len(l.buf)], true
}

// MarshalJSON encodes the entries oldest first.
func (l Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}
