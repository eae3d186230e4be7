package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilePrefix prefixes every generated log file name.
const FilePrefix = "clustermaster-"

// FileConfig selects where log output goes.
type FileConfig struct {
	// Output is empty for a generated file in Dir, "-" for stderr, "none" to
	// discard, or a path (relative paths are joined to Dir).
	Output        string
	Dir           string
	RetentionDays int
}

// LogFile is an opened log sink.
type LogFile struct {
	Path string
	w    io.Writer
	f    *os.File
}

// OpenLogFile opens the sink described by cfg.
func OpenLogFile(cfg FileConfig) (*LogFile, error) {
	switch strings.ToLower(cfg.Output) {
	case "none":
		return &LogFile{w: io.Discard}, nil
	case "-":
		return &LogFile{w: os.Stderr}, nil
	}

	path := cfg.Output
	if path == "" {
		path = FileName(time.Now().UTC(), os.Getpid())
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Dir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return &LogFile{Path: path, w: f, f: f}, nil
}

// Writer returns the sink writer.
func (l *LogFile) Writer() io.Writer { return l.w }

// Close closes the underlying file, if any.
func (l *LogFile) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}

// FileName returns "clustermaster-YYYYMMDD-HHMMSS-PID.log" for t in UTC.
func FileName(t time.Time, pid int) string {
	return fmt.Sprintf("%s%s-%d.log", FilePrefix, t.UTC().Format("20060102-150405"), pid)
}

// PruneLogFiles deletes generated log files in dir older than retentionDays
// and returns how many were removed. Files it cannot stat or remove are skipped.
func PruneLogFiles(dir string, retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read log directory: %w", err)
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(dir, name)) == nil {
			removed++
		}
	}
	return removed, nil
}
