package memory

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestWatcher(t *testing.T, onChange func(path string)) *FileWatcher {
	t.Helper()

	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	fw, err := NewFileWatcher(logger, onChange)
	require.NoError(t, err)
	return fw
}

func TestFileWatcherStop(t *testing.T) {
	fw := createTestWatcher(t, func(string) {})
	assert.NoError(t, fw.Stop())
}

func TestFileWatcherDetectsDayFileWrite(t *testing.T) {
	notesDir := t.TempDir()
	monthDir := filepath.Join(notesDir, "2026-02")
	require.NoError(t, os.MkdirAll(monthDir, 0755))

	changed := make(chan string, 1)
	fw := createTestWatcher(t, func(path string) { changed <- path })
	defer fw.Stop()

	require.NoError(t, fw.Watch(notesDir))

	dayFile := filepath.Join(monthDir, "2026-02-05.md")
	require.NoError(t, os.WriteFile(dayFile, []byte("## 10:00 - entry\nbody\n"), 0644))

	select {
	case path := <-changed:
		assert.Equal(t, dayFile, path)
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for day file change")
	}
}

func TestFileWatcherPicksUpNewMonthDir(t *testing.T) {
	notesDir := t.TempDir()

	changed := make(chan string, 1)
	fw := createTestWatcher(t, func(path string) { changed <- path })
	defer fw.Stop()

	require.NoError(t, fw.Watch(notesDir))

	// The month directory appears only when the first note of the month
	// is written
	monthDir := filepath.Join(notesDir, "2026-03")
	require.NoError(t, os.MkdirAll(monthDir, 0755))
	time.Sleep(300 * time.Millisecond)

	dayFile := filepath.Join(monthDir, "2026-03-01.md")
	require.NoError(t, os.WriteFile(dayFile, []byte("## 09:00 - first entry\nbody\n"), 0644))

	select {
	case path := <-changed:
		assert.Equal(t, dayFile, path)
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for change in new month directory")
	}
}

func TestFileWatcherIgnoresNonMarkdown(t *testing.T) {
	notesDir := t.TempDir()

	var fired atomic.Int32
	fw := createTestWatcher(t, func(string) { fired.Add(1) })
	defer fw.Stop()

	require.NoError(t, fw.Watch(notesDir))

	require.NoError(t, os.WriteFile(filepath.Join(notesDir, "scratch.txt"), []byte("not a note"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(notesDir, ".2026-02-05.md.swp"), []byte("editor droppings"), 0644))

	time.Sleep(time.Second)
	assert.Zero(t, fired.Load())
}

func TestFileWatcherDebouncesBursts(t *testing.T) {
	notesDir := t.TempDir()

	var fired atomic.Int32
	fw := createTestWatcher(t, func(string) { fired.Add(1) })
	defer fw.Stop()

	require.NoError(t, fw.Watch(notesDir))

	dayFile := filepath.Join(notesDir, "2026-02-05.md")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(dayFile, []byte("## 10:00 - entry\nrevision\n"), 0644))
	}

	// One save burst settles into one callback
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDateFromDayFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join("notes", "2026-02", "2026-02-05.md"), "2026-02-05"},
		{filepath.Join("notes", "2026-02-05.md"), "2026-02-05"},
		{filepath.Join("notes", "2026-02", "scratch.md"), ""},
		{filepath.Join("notes", "2026-02", "2026-2-5.md"), ""},
		{"README.md", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DateFromDayFile(tt.path))
		})
	}
}
