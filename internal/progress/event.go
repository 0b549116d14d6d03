package progress

import (
	"encoding/json"
	"fmt"
)

// Kind names an event variant.
type Kind string

// Event kinds, one per variant.
const (
	KindPageVisited      Kind = "page_visited"
	KindResourcesFetched Kind = "resources_fetched"
	KindConverting       Kind = "converting"
	KindCompleted        Kind = "completed"
	KindError            Kind = "error"
	KindUnclassified     Kind = "unclassified"
)

// Style is the display style attached to a log entry.
type Style string

// Log entry styles.
const (
	StyleNone    Style = ""
	StyleInfo    Style = "info"
	StyleSuccess Style = "success"
	StyleError   Style = "error"
)

// Event is one classified status message. The set of implementations is
// closed; consumers are expected to type-switch over all of them.
type Event interface {
	Kind() Kind
	// Text is the raw status string as received.
	Text() string
	sealed()
}

// PageVisited reports that the crawler reached a new page. Resources is
// non-zero only when the same message also carried a resource count.
type PageVisited struct {
	Raw       string
	Style     Style
	Resources int64
}

// ResourcesFetched reports a batch of downloaded resources.
type ResourcesFetched struct {
	Raw   string
	Count int64
	Style Style
}

// Converting reports that the service is packaging the archive.
type Converting struct {
	Raw string
}

// Completed reports that the archive is ready under Filename.
type Completed struct {
	Raw      string
	Filename string
}

// ErrorReported carries a service-side error message verbatim.
type ErrorReported struct {
	Raw string
}

// Unclassified is any other progress line.
type Unclassified struct {
	Raw   string
	Style Style
}

func (PageVisited) Kind() Kind { return KindPageVisited }
func (ResourcesFetched) Kind() Kind { return KindResourcesFetched }
func (Converting) Kind() Kind { return KindConverting }
func (Completed) Kind() Kind { return KindCompleted }
func (ErrorReported) Kind() Kind { return KindError }
func (Unclassified) Kind() Kind { return KindUnclassified }

func (e PageVisited) Text() string { return e.Raw }
func (e ResourcesFetched) Text() string { return e.Raw }
func (e Converting) Text() string { return e.Raw }
func (e Completed) Text() string { return e.Raw }
func (e ErrorReported) Text() string { return e.Raw }
func (e Unclassified) Text() string { return e.Raw }

func (PageVisited) sealed() {}
func (ResourcesFetched) sealed() {}
func (Converting) sealed() {}
func (Completed) sealed() {}
func (ErrorReported) sealed() {}
func (Unclassified) sealed() {}

// Message is the inbound payload of a token channel event.
type Message struct {
	Progress string `json:"progress"`
	File     string `json:"file,omitempty"`
}

// DecodeMessage parses the JSON argument of a channel event.
func DecodeMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode progress message: %w", err)
	}
	return msg, nil
}
