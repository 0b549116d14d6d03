// Package progress turns raw status strings from the mirroring service into a
// closed set of structured events, and carries observations of those events to
// pluggable sinks through a non-blocking batching hub.
//
// Classification happens once, at the channel boundary. Everything downstream
// switches on the concrete event type instead of re-inspecting substrings.
package progress
