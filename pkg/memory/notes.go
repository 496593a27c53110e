package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// entryHeaderRe matches daily note entry headers: "## HH:MM - <title>".
// Second-level headings without the " - " separator are body text.
var entryHeaderRe = regexp.MustCompile(`^##\s+(\d{1,2}:\d{2})\s+-\s+(.+)$`)

// typeMarkers is the scan order for type markers in entry titles. The
// first marker found wins; titles without one default to note.
var typeMarkers = []MemoryType{TypeTask, TypeKnowledge, TypeNoise, TypeNote}

// DayFilePath returns the note file location for a date:
// <notesDir>/YYYY-MM/YYYY-MM-DD.md.
func DayFilePath(notesDir, date string) string {
	return filepath.Join(notesDir, date[:7], date+".md")
}

// EnsureNotesDir creates the notes directory if it does not exist.
func EnsureNotesDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}
	return nil
}

// DayFileExists reports whether a note file exists for the date.
func DayFileExists(notesDir, date string) (bool, error) {
	_, err := os.Stat(DayFilePath(notesDir, date))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ParseDayFile reads and parses one day's note file. A missing file is
// not an error; it parses to no entries.
func ParseDayFile(path, date string) ([]RawEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read note file: %w", err)
	}
	return ParseEntries(string(data), date), nil
}

// ParseEntries splits day-file content into entries. Each entry starts at
// a header line and runs until the next header or end of file. Tags and
// importance markers are parsed out of the body but the body keeps them,
// so keyword matching sees the entry exactly as written.
func ParseEntries(content, date string) []RawEntry {
	var entries []RawEntry
	var current *RawEntry
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		entries = append(entries, *current)
		current = nil
		body = nil
	}

	for _, line := range strings.Split(content, "\n") {
		if m := entryHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			title := strings.TrimSpace(m[2])
			current = &RawEntry{
				Date:       date,
				Offset:     len(entries),
				Time:       m[1],
				Title:      title,
				Type:       entryType(title),
				Importance: DefaultImportance,
			}
			continue
		}
		if current == nil {
			// Content before the first entry header is ignored.
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "**Tags**:"):
			current.Tags = parseTags(strings.TrimPrefix(trimmed, "**Tags**:"))
		case strings.HasPrefix(trimmed, "**Importance**:"):
			raw := strings.TrimSpace(strings.TrimPrefix(trimmed, "**Importance**:"))
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				current.Importance = v
			}
		}
		body = append(body, line)
	}
	flush()

	return entries
}

// ScanRecentDays parses the last n day files, today first. Missing files
// are skipped; the result reflects whatever is on disk right now.
func ScanRecentDays(notesDir string, days int, now time.Time) ([]RawEntry, error) {
	var entries []RawEntry
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		dayEntries, err := ParseDayFile(DayFilePath(notesDir, date), date)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dayEntries...)
	}
	return entries, nil
}

func entryType(title string) MemoryType {
	lower := strings.ToLower(title)
	for _, t := range typeMarkers {
		if strings.Contains(lower, string(t)) {
			return t
		}
	}
	return TypeNote
}

func parseTags(s string) []string {
	var tags []string
	for _, f := range strings.Fields(s) {
		if tag := strings.TrimPrefix(f, "#"); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// excerptLen bounds the snippet carried by keyword-only results.
const excerptLen = 200

func excerpt(body string) string {
	runes := []rune(body)
	if len(runes) <= excerptLen {
		return body
	}
	return string(runes[:excerptLen]) + "..."
}
