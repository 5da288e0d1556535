package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "history.jsonl"))
}

func stampedRecord(ts time.Time, prompt, response, sessionID string) Record {
	rec := NewRecord(prompt, []string{"[S] a: 1"}, response, sessionID, "chat")
	rec.Timestamp = ts.UTC().Format(timestampLayout)
	return rec
}

func TestLog_AppendAndRead(t *testing.T) {
	log := newTestLog(t)

	require.NoError(t, log.Append(NewRecord("q1", nil, "a1", "s1", "chat")))
	require.NoError(t, log.Append(NewRecord("q2", nil, "a2", "s1", "chat")))

	records, err := log.Read()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "q1", records[0].Prompt)
	assert.Equal(t, 0, records[0].ID)
	assert.Equal(t, "a2", records[1].Response)
	assert.Equal(t, 1, records[1].ID)
}

func TestLog_TimestampFormat(t *testing.T) {
	rec := NewRecord("q", nil, "a", "", "chat")
	parsed, err := time.Parse(timestampLayout, rec.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)
	assert.Regexp(t, `Z$`, rec.Timestamp)
}

func TestLog_DedupWithinWindow(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	require.NoError(t, log.Append(stampedRecord(now, "same", "answer", "s1")))
	require.NoError(t, log.Append(stampedRecord(now.Add(2*time.Second), "same", "answer", "s1")))

	records, err := log.Read()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLog_NoDedupOutsideWindow(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	require.NoError(t, log.Append(stampedRecord(now, "same", "answer", "s1")))
	require.NoError(t, log.Append(stampedRecord(now.Add(10*time.Second), "same", "answer", "s1")))

	records, err := log.Read()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLog_NoDedupAcrossSessions(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	require.NoError(t, log.Append(stampedRecord(now, "same", "answer", "s1")))
	require.NoError(t, log.Append(stampedRecord(now, "same", "answer", "s2")))

	records, err := log.Read()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLog_NoDedupDifferentMode(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	chat := stampedRecord(now, "same", "answer", "s1")
	form := stampedRecord(now, "same", "answer", "s1")
	form.Mode = "formula"

	require.NoError(t, log.Append(chat))
	require.NoError(t, log.Append(form))

	records, err := log.Read()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLog_DedupOnlyChecksTail(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	require.NoError(t, log.Append(stampedRecord(now, "dup", "answer", "s1")))
	// Push the duplicate out of the 5-line window.
	for i := 0; i < dedupTailLines; i++ {
		require.NoError(t, log.Append(stampedRecord(now, string(rune('a'+i)), "x", "s1")))
	}
	require.NoError(t, log.Append(stampedRecord(now, "dup", "answer", "s1")))

	records, err := log.Read()
	require.NoError(t, err)
	assert.Len(t, records, dedupTailLines+2)
}

func TestLog_ReadMissingFile(t *testing.T) {
	log := newTestLog(t)
	records, err := log.Read()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLog_List(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	require.NoError(t, log.Append(stampedRecord(now, "first", "a", "s1")))
	require.NoError(t, log.Append(stampedRecord(now, "second", "b", "s2")))

	items, err := log.List(5)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Newest first.
	assert.Equal(t, "second", items[0].Prompt)
	assert.Equal(t, "first", items[1].Prompt)
	assert.Equal(t, 1, items[0].ID)
}

func TestLog_ListLimit(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	for i := 0; i < 4; i++ {
		require.NoError(t, log.Append(stampedRecord(now, string(rune('a'+i)), "x", "s")))
	}

	items, err := log.List(2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "d", items[0].Prompt)
}

func TestLog_Grouped(t *testing.T) {
	log := newTestLog(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(stampedRecord(base, "q1", "a1", "old")))
	require.NoError(t, log.Append(stampedRecord(base.Add(time.Hour), "q2", "a2", "new")))
	require.NoError(t, log.Append(stampedRecord(base.Add(2*time.Hour), "q3", "a3", "new")))

	groups, err := log.Grouped(10)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "new", groups[0].SessionID)
	assert.Equal(t, 2, groups[0].Turns)
	assert.Equal(t, "q2", groups[0].FirstPrompt)
	assert.Equal(t, "old", groups[1].SessionID)
}

func TestLog_Session(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	require.NoError(t, log.Append(stampedRecord(now, "q1", "a1", "sess")))
	require.NoError(t, log.Append(stampedRecord(now.Add(time.Minute), "q2", "a2", "sess")))

	view, err := log.Session("sess")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Turns)
	assert.Equal(t, "q1", view.Title)
	assert.Equal(t, "a2", view.Items[1].Response)

	_, err = log.Session("missing")
	assert.Error(t, err)
}

func TestLog_Get(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	require.NoError(t, log.Append(stampedRecord(now, "q1", "a1", "s")))

	rec, err := log.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "q1", rec.Prompt)

	_, err = log.Get(99)
	assert.Error(t, err)
}
