// Package folder defines the two narrow collaborator interfaces the
// core talks to — a shared-folder accessor and a progress/log sink —
// plus default filesystem- and slog-backed implementations. Everything
// else about the GUI, the file picker, or how progress is rendered
// lives outside this module.
package folder

import (
	"log/slog"
	"os"
	"strings"
)

// SharedFolder returns the directory whose regular-file children are
// advertised to peers. It is read-only from the core's viewpoint.
type SharedFolder interface {
	Dir() string
}

// ProgressSink receives narrative log lines and per-file progress
// updates. Implementations must be safe to call from any goroutine.
type ProgressSink interface {
	Log(message string)
	UpdateProgress(filename, status string)
}

// Static is a SharedFolder backed by a fixed directory path.
type Static string

func (s Static) Dir() string { return string(s) }

// SlogSink is a ProgressSink that writes narrative lines and progress
// updates through a *slog.Logger.
type SlogSink struct {
	log *slog.Logger
}

func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log.With("component", "progress")}
}

func (s *SlogSink) Log(message string) {
	s.log.Info(message)
}

func (s *SlogSink) UpdateProgress(filename, status string) {
	s.log.Info("progress", "file", filename, "status", status)
}

// Catalog enumerates the regular, non-hidden files directly inside dir.
// It is derived on demand — no caching — so additions and removals are
// reflected without restart. Platform junk (e.g. ".DS_Store",
// "Thumbs.db") is excluded the same way hidden files are: by name.
func Catalog(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isHiddenOrJunk(e.Name()) {
			continue
		}
		if !e.Type().IsRegular() {
			info, err := e.Info()
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}

		names = append(names, e.Name())
	}

	return names, nil
}

var junkNames = map[string]bool{
	"Thumbs.db":   true,
	"desktop.ini": true,
}

func isHiddenOrJunk(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return junkNames[name]
}
