package session

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/siteclone/internal/progress"
)

func TestLogEvictsOldestAfterCapacity(t *testing.T) {
	t.Parallel()

	l := NewLog(DefaultLogCapacity)
	for i := 1; i <= 51; i++ {
		l = l.Append(Entry{Text: fmt.Sprintf("line %d", i)})
		require.LessOrEqual(t, l.Len(), DefaultLogCapacity)
	}

	entries := l.Entries()
	require.Len(t, entries, DefaultLogCapacity)
	require.Equal(t, "line 2", entries[0].Text)
	require.Equal(t, "line 51", entries[len(entries)-1].Text)
	for _, e := range entries {
		require.NotEqual(t, "line 1", e.Text)
	}
}

func TestLogAppendKeepsReceiverIntact(t *testing.T) {
	t.Parallel()

	base := NewLog(2).Append(Entry{Text: "a"}).Append(Entry{Text: "b"})
	next := base.Append(Entry{Text: "c"})

	require.Equal(t, []Entry{{Text: "a"}, {Text: "b"}}, base.Entries())
	require.Equal(t, []Entry{{Text: "b"}, {Text: "c"}}, next.Entries())

	last, ok := next.Last()
	require.True(t, ok)
	require.Equal(t, "c", last.Text)
}

func TestLogZeroValue(t *testing.T) {
	t.Parallel()

	var l Log
	require.Equal(t, DefaultLogCapacity, l.Cap())
	_, ok := l.Last()
	require.False(t, ok)
	require.Empty(t, l.Entries())

	l = l.Append(Entry{Text: "x", Style: progress.StyleInfo})
	require.Equal(t, 1, l.Len())
}

func TestLogMarshalJSON(t *testing.T) {
	t.Parallel()

	l := NewLog(3).Append(Entry{Text: "a", Style: progress.StyleError}).Append(Entry{Text: "b"})
	raw, err := json.Marshal(l)
	require.NoError(t, err)
	require.JSONEq(t, `[{"text":"a","style":"error"},{"text":"b"}]`, string(raw))
}
