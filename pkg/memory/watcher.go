package memory

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileWatcher watches the notes tree for changed day files. Events are
// debounced per file so one editor save burst produces one callback.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func(path string)
	debounce time.Duration
	mu       sync.Mutex
	timers   map[string]*time.Timer
	stopCh   chan struct{}
}

// NewFileWatcher creates a file watcher. onChange receives the path of
// each settled markdown change.
func NewFileWatcher(logger zerolog.Logger, onChange func(path string)) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  watcher,
		logger:   logger,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}

	go fw.run()

	return fw, nil
}

// Watch starts watching a directory tree. The notes layout nests month
// directories, so existing subdirectories are added too; directories
// created later are picked up from their create events.
func (fw *FileWatcher) Watch(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.watcher.Add(p)
		}
		return nil
	})
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	close(fw.stopCh)

	fw.mu.Lock()
	for _, t := range fw.timers {
		t.Stop()
	}
	fw.mu.Unlock()

	return fw.watcher.Close()
}

// run processes file system events
func (fw *FileWatcher) run() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.watcher.Add(event.Name); err != nil {
						fw.logger.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
					continue
				}
			}

			// Only day files matter
			if !strings.HasSuffix(strings.ToLower(event.Name), ".md") {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				fw.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("File change detected")

				fw.scheduleChange(event.Name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error().Err(err).Msg("File watcher error")

		case <-fw.stopCh:
			return
		}
	}
}

// scheduleChange debounces change delivery per file
func (fw *FileWatcher) scheduleChange(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if t, ok := fw.timers[path]; ok {
		t.Stop()
	}

	fw.timers[path] = time.AfterFunc(fw.debounce, func() {
		fw.mu.Lock()
		delete(fw.timers, path)
		fw.mu.Unlock()

		fw.logger.Debug().Str("file", filepath.Base(path)).Msg("File change settled")
		fw.onChange(path)
	})
}

// DateFromDayFile extracts the YYYY-MM-DD date from a day file path, or
// "" when the name is not a day file.
func DateFromDayFile(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if ValidateDate(name) != nil {
		return ""
	}
	return name
}
