// Package request implements the client-side contract for starting a
// download: which URLs are sendable and what goes on the wire.
package request

import (
	"errors"
	"strings"
)

// MaxURLLength is the maximum number of characters transmitted for a URL.
const MaxURLLength = 500

// EventName is the channel event that starts a download on the service.
const EventName = "request"

// ErrNotSendable is returned when a URL fails the scheme check.
var ErrNotSendable = errors.New("url must start with http:// or https://")

var acceptedPrefixes = []string{"http://", "https://"}

// Validation describes the state of the URL input control.
type Validation struct {
	// Sendable is true when the request control would be enabled.
	Sendable bool
	// Warning is true when the invalid-URL warning should be visible: the
	// field is non-empty and fails the check.
	Warning bool
}

// Validate runs the scheme prefix check on raw input.
func Validate(raw string) Validation {
	ok := sendable(raw)
	return Validation{
		Sendable: ok,
		Warning:  raw != "" && !ok,
	}
}

func sendable(raw string) bool {
	for _, p := range acceptedPrefixes {
		if strings.HasPrefix(raw, p) {
			return true
		}
	}
	return false
}

// Payload is the body of the outbound request event.
type Payload struct {
	Token   string `json:"token"`
	Website string `json:"website"`
}

// New builds the payload for token and website. The website is truncated
// to MaxURLLength characters; ErrNotSendable is returned if it fails Validate.
func New(token, website string) (Payload, error) {
	if !Validate(website).Sendable {
		return Payload{}, ErrNotSendable
	}
	return Payload{Token: token, Website: Truncate(website, MaxURLLength)}, nil
}

// Truncate cuts s to at most n characters, counting runes rather than bytes
// so multi-byte input is never split mid-character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
