package render

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/session"
	"github.com/JakeFAU/siteclone/internal/status"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func replay(r Renderer, messages ...string) session.State {
	c := progress.NewClassifier(progress.DefaultMarkers())
	s := session.New("TOKEN", "req-1", "https://example.com", epoch, session.Options{})
	r.Reset(s)
	for i, m := range messages {
		msg := progress.Message{Progress: m}
		if m == "Completed" {
			msg.File = "example_com"
		}
		evt := c.Classify(msg)
		s = s.Apply(evt, epoch.Add(time.Duration(i)*time.Second))
		r.Event(s, evt)
	}
	return s
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatText, f)
	f, err = ParseFormat(" JSON ")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestTextRenderer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bar := status.NewBar()
	bar.SetTime("12:00 PM")
	r := NewText(&buf, bar)
	replay(r,
		"[页面] https://example.com/",
		"资源下载完成: 12",
		"Error: timeout fetching /a.css",
		"Converting",
		"Completed",
	)
	require.NoError(t, r.Close())

	out := buf.String()
	require.Contains(t, out, "==> https://example.com")
	require.Contains(t, out, "[info] Connecting to server...")
	require.Contains(t, out, "[info] [页面] https://example.com/")
	require.Contains(t, out, "[ ok ] 资源下载完成: 12")
	require.Contains(t, out, "[fail] Error: timeout fetching /a.css")
	require.Contains(t, out, "[info] Compressing files...")
	require.Contains(t, out, "[ ok ] Download complete!")
	require.Contains(t, out, "pages: 1  files: 12")
	require.Contains(t, out, "archive: /sites/example_com.zip")
}

func TestTextRendererWarning(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewText(&buf, nil)
	r.Warning("Please enter a valid URL")
	require.Equal(t, "warning: Please enter a valid URL\n", buf.String())
}

func TestJSONRenderer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewJSON(&buf, nil)
	r.now = func() time.Time { return epoch }
	replay(r, "[页面] https://example.com/", "Completed")
	r.Warning("bad url")

	var records []Record
	sc := bufio.NewScanner(strings.NewReader(buf.String()))
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	require.Len(t, records, 4)

	require.Equal(t, "reset", records[0].Type)
	require.Equal(t, session.PhaseConnecting, records[0].Phase)
	require.Zero(t, records[0].Pages)

	require.Equal(t, "event", records[1].Type)
	require.Equal(t, progress.KindPageVisited, records[1].Kind)
	require.Equal(t, int64(1), records[1].Pages)
	require.NotNil(t, records[1].Entry)
	require.Equal(t, progress.StyleInfo, records[1].Entry.Style)
	require.Empty(t, records[1].Archive)

	require.Equal(t, progress.KindCompleted, records[2].Kind)
	require.Equal(t, session.PhaseCompleted, records[2].Phase)
	require.Equal(t, "/sites/example_com.zip", records[2].Archive)

	require.Equal(t, "warning", records[3].Type)
	require.Equal(t, "bad url", records[3].Warning)
}

func TestArchivePathHidesUnsafeNames(t *testing.T) {
	t.Parallel()

	s := session.New("T", "r", "https://example.com", epoch, session.Options{})
	s = s.Apply(progress.Completed{Raw: "Completed", Filename: "../etc/passwd"}, epoch)
	require.True(t, s.Ready)
	require.Empty(t, archivePath(s))
}
