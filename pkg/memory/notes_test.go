package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDay = `Some preamble the parser ignores.

## 09:15 - Fixed the deploy pipeline [task]
The staging deploy was failing on the migration step.
Rolled back the schema change and re-ran it.
**Tags**: #deploy #staging
**Importance**: 0.8

## 11:00 - sqlite-vec needs pysqlite3 on macOS [knowledge]
System Python on macOS ships without extension support.

## 12:30 - lunch [noise]

## 14:45 - Weekly sync notes
Discussed the Q3 roadmap with the team.
`

func TestParseEntries(t *testing.T) {
	entries := ParseEntries(sampleDay, "2026-02-05")
	require.Len(t, entries, 4)

	first := entries[0]
	assert.Equal(t, "2026-02-05", first.Date)
	assert.Equal(t, 0, first.Offset)
	assert.Equal(t, "09:15", first.Time)
	assert.Equal(t, "Fixed the deploy pipeline [task]", first.Title)
	assert.Equal(t, TypeTask, first.Type)
	assert.Equal(t, []string{"deploy", "staging"}, first.Tags)
	assert.InDelta(t, 0.8, first.Importance, 0.001)
	assert.Contains(t, first.Body, "staging deploy was failing")
	// Metadata lines stay in the body so keyword search sees them
	assert.Contains(t, first.Body, "**Tags**:")

	assert.Equal(t, TypeKnowledge, entries[1].Type)
	assert.Equal(t, 1, entries[1].Offset)

	assert.Equal(t, TypeNoise, entries[2].Type)
	assert.Empty(t, entries[2].Body)

	// No marker defaults to note, importance defaults to mid-range
	last := entries[3]
	assert.Equal(t, TypeNote, last.Type)
	assert.InDelta(t, DefaultImportance, last.Importance, 0.001)
	assert.Equal(t, 3, last.Offset)
}

func TestParseEntriesEmpty(t *testing.T) {
	assert.Empty(t, ParseEntries("", "2026-02-05"))
	assert.Empty(t, ParseEntries("just prose, no headers", "2026-02-05"))
}

func TestParseEntriesHeaderVariants(t *testing.T) {
	content := "## 9:05 - single digit hour\n" +
		"body\n" +
		"### 10:00 - not an entry header\n" +
		"## 10:30 missing separator\n" +
		"## 11:00 - trailing ok\n"

	entries := ParseEntries(content, "2026-02-05")
	require.Len(t, entries, 2)
	assert.Equal(t, "9:05", entries[0].Time)
	assert.Contains(t, entries[0].Body, "### 10:00")
	assert.Equal(t, "11:00", entries[1].Time)
}

func TestEntryTypeMarkers(t *testing.T) {
	tests := []struct {
		title string
		want  MemoryType
	}{
		{"Did a thing [task]", TypeTask},
		{"Learned a thing [knowledge]", TypeKnowledge},
		{"Lunch [noise]", TypeNoise},
		{"Plain note [note]", TypeNote},
		{"No marker at all", TypeNote},
		{"Case folded [TASK]", TypeTask},
		// First marker in scan order wins
		{"Mixed [knowledge] and [task]", TypeTask},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, entryType(tt.title))
		})
	}
}

func TestDayFilePath(t *testing.T) {
	path := DayFilePath("/notes", "2026-02-05")
	assert.Equal(t, filepath.Join("/notes", "2026-02", "2026-02-05.md"), path)
}

func TestParseDayFileMissing(t *testing.T) {
	entries, err := ParseDayFile(filepath.Join(t.TempDir(), "nope.md"), "2026-02-05")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanRecentDays(t *testing.T) {
	notesDir := t.TempDir()
	now := time.Date(2026, 2, 5, 18, 0, 0, 0, time.UTC)

	writeDay := func(date, title string) {
		path := DayFilePath(notesDir, date)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		content := "## 10:00 - " + title + "\nbody\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	writeDay("2026-02-05", "today entry")
	writeDay("2026-02-04", "yesterday entry")
	// Outside the window
	writeDay("2026-02-01", "old entry")

	entries, err := ScanRecentDays(notesDir, 3, now)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Today first, then older days
	assert.Equal(t, "today entry", entries[0].Title)
	assert.Equal(t, "yesterday entry", entries[1].Title)
}

func TestExcerpt(t *testing.T) {
	short := "short body"
	assert.Equal(t, short, excerpt(short))

	long := ""
	for i := 0; i < 50; i++ {
		long += "0123456789"
	}
	got := excerpt(long)
	assert.LessOrEqual(t, len([]rune(got)), excerptLen+3)
	assert.Contains(t, got, "...")
}
