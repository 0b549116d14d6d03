// Package render draws session progress for a terminal or for machines.
package render

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/siteclone/internal/archive"
	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/session"
)

// Renderer receives every state the observer produces, in order.
type Renderer interface {
	// Reset is called once per request with the freshly reset state, before
	// the request is transmitted.
	Reset(s session.State)
	// Event is called after evt has been applied to produce s.
	Event(s session.State, evt progress.Event)
	// Warning shows a local validation warning.
	Warning(text string)
	Close() error
}

// Format selects a Renderer implementation.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a configured format name.
func ParseFormat(v string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(v))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", v)
	}
}

// Nop renders nothing.
type Nop struct{}

// Reset implements Renderer.
func (Nop) Reset(session.State) {}

// Event implements Renderer.
func (Nop) Event(session.State, progress.Event) {}

// Warning implements Renderer.
func (Nop) Warning(string) {}

// Close implements Renderer.
func (Nop) Close() error { return nil }

func archivePath(s session.State) string {
	if !s.Ready {
		return ""
	}
	p, ok := archive.Path(s.Filename)
	if !ok {
		return ""
	}
	return p
}
