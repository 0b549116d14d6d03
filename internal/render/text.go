package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/session"
	"github.com/JakeFAU/siteclone/internal/status"
)

// spinnerStyle is a braille spinner from progressbar's built-in set.
const spinnerStyle = 14

// Text writes tagged log lines and keeps a spinner with the status label,
// counters and status bar on the last line while the session is loading.
type Text struct {
	mu      sync.Mutex
	w       io.Writer
	bar     *status.Bar
	spinner *progressbar.ProgressBar
}

// NewText renders to w. bar may be nil.
func NewText(w io.Writer, bar *status.Bar) *Text {
	return &Text{w: w, bar: bar}
}

func tag(style progress.Style) string {
	switch style {
	case progress.StyleInfo:
		return "[info]"
	case progress.StyleSuccess:
		return "[ ok ]"
	case progress.StyleError:
		return "[fail]"
	default:
		return "      "
	}
}

// Reset implements Renderer.
func (t *Text) Reset(s session.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopSpinner()
	fmt.Fprintf(t.w, "==> %s\n", s.Website)
	for _, e := range s.Log.Entries() {
		t.line(e)
	}
	t.spinner = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(t.w),
		progressbar.OptionSpinnerType(spinnerStyle),
		progressbar.OptionClearOnFinish(),
	)
	t.describe(s)
}

// Event implements Renderer.
func (t *Text) Event(s session.State, _ progress.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.spinner != nil {
		_ = t.spinner.Clear()
	}
	if e, ok := s.Log.Last(); ok {
		t.line(e)
	}
	if !s.Loading {
		t.stopSpinner()
		fmt.Fprintf(t.w, "pages: %d  files: %d\n", s.Pages, s.Files)
		if p := archivePath(s); p != "" {
			fmt.Fprintf(t.w, "archive: %s\n", p)
		}
		return
	}
	t.describe(s)
}

// Warning implements Renderer.
func (t *Text) Warning(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.spinner != nil {
		_ = t.spinner.Clear()
	}
	fmt.Fprintf(t.w, "warning: %s\n", text)
}

// Close implements Renderer.
func (t *Text) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopSpinner()
	return nil
}

func (t *Text) line(e session.Entry) {
	fmt.Fprintf(t.w, "%s %s\n", tag(e.Style), e.Text)
}

func (t *Text) describe(s session.State) {
	if t.spinner == nil {
		return
	}
	label := fmt.Sprintf("%s pages: %d files: %d", s.StatusText(), s.Pages, s.Files)
	if t.bar != nil {
		label += " | " + t.bar.Snapshot().String()
	}
	t.spinner.Describe(label)
	_ = t.spinner.Add(1)
}

func (t *Text) stopSpinner() {
	if t.spinner == nil {
		return
	}
	_ = t.spinner.Finish()
	t.spinner = nil
}
