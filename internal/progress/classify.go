package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// Markers are the literals and substrings the service embeds in its status
// strings. The defaults match the service's own wording.
type Markers struct {
	// Converting and Completed are compared for equality, not containment.
	Converting string   `mapstructure:"converting"`
	Completed  string   `mapstructure:"completed"`
	Errors     []string `mapstructure:"errors"`
	Page       string   `mapstructure:"page"`
	Resources  string   `mapstructure:"resources"`
	Success    string   `mapstructure:"success"`
}

// DefaultMarkers returns the markers emitted by the mirroring service.
func DefaultMarkers() Markers {
	return Markers{
		Converting: "Converting",
		Completed:  "Completed",
		Errors:     []string{"Error", "错误"},
		Page:       "[页面]",
		Resources:  "资源下载完成",
		Success:    "完成",
	}
}

func (m Markers) withDefaults() Markers {
	def := DefaultMarkers()
	if m.Converting == "" {
		m.Converting = def.Converting
	}
	if m.Completed == "" {
		m.Completed = def.Completed
	}
	if len(m.Errors) == 0 {
		m.Errors = def.Errors
	}
	if m.Page == "" {
		m.Page = def.Page
	}
	if m.Resources == "" {
		m.Resources = def.Resources
	}
	if m.Success == "" {
		m.Success = def.Success
	}
	return m
}

var countPattern = regexp.MustCompile(`\d+`)

// Classifier maps messages to events. It is stateless and safe for
// concurrent use.
type Classifier struct {
	markers Markers
}

// NewClassifier builds a Classifier; empty marker fields take their defaults.
func NewClassifier(m Markers) *Classifier {
	return &Classifier{markers: m.withDefaults()}
}

// Markers returns the effective markers.
func (c *Classifier) Markers() Markers {
	return c.markers
}

// Classify applies the ordered policy: converting literal, completion
// literal, error token, then progress update.
func (c *Classifier) Classify(msg Message) Event {
	text := msg.Progress
	m := c.markers
	switch {
	case text == m.Converting:
		return Converting{Raw: text}
	case text == m.Completed:
		return Completed{Raw: text, Filename: msg.File}
	case c.isError(text):
		return ErrorReported{Raw: text}
	}

	page := strings.Contains(text, m.Page)
	var count int64
	hasResources := strings.Contains(text, m.Resources)
	if hasResources {
		count = ParseCount(text)
	}
	style := StyleNone
	switch {
	case strings.Contains(text, m.Success):
		style = StyleSuccess
	case page:
		style = StyleInfo
	}

	switch {
	case page:
		return PageVisited{Raw: text, Style: style, Resources: count}
	case hasResources:
		return ResourcesFetched{Raw: text, Count: count, Style: style}
	default:
		return Unclassified{Raw: text, Style: style}
	}
}

func (c *Classifier) isError(text string) bool {
	for _, tok := range c.markers.Errors {
		if tok != "" && strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

// ParseCount returns the first run of ASCII digits in s, or 0 when there is
// none or it does not fit in an int64.
func ParseCount(s string) int64 {
	digits := countPattern.FindString(s)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
