// Package logging implements a colorized, human-readable slog.Handler
// used by every long-lived component in this module.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Options controls the rendering of a PrettyHandler.
type Options struct {
	Slog slog.HandlerOptions

	UseColor         bool
	ShowSource       bool
	FullSource       bool
	TimeFormat       string
	LevelWidth       int
	DisableTimestamp bool
	FieldSeparator   string
}

// DefaultOptions returns sensible defaults for console output.
func DefaultOptions() Options {
	return Options{
		Slog:             slog.HandlerOptions{Level: slog.LevelInfo},
		UseColor:         true,
		ShowSource:       true,
		FullSource:       false,
		TimeFormat:       time.RFC3339,
		LevelWidth:       7,
		DisableTimestamp: false,
		FieldSeparator:   " | ",
	}
}

// PrettyHandler is a slog.Handler that writes one colorized entry per
// record: timestamp | level | source | message | json-attrs. The
// attribute tail is indented JSON, so a record with attributes spans
// several lines.
type PrettyHandler struct {
	opts   Options
	writer io.Writer
	mu     *sync.Mutex
	groups []string
	attrs  []slog.Attr

	colorTime    func(...any) string
	colorLevel   map[slog.Level]func(...any) string
	colorMessage func(...any) string
	colorSource  func(...any) string
	colorFields  func(...any) string
}

func NewPrettyHandler(w io.Writer, opts *Options) *PrettyHandler {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.TimeFormat == "" {
		o.TimeFormat = time.RFC3339
	}
	if o.LevelWidth < 5 {
		o.LevelWidth = 7
	}
	if o.FieldSeparator == "" {
		o.FieldSeparator = " | "
	}

	h := &PrettyHandler{
		opts:   o,
		writer: w,
		mu:     &sync.Mutex{},
	}
	h.initColorFuncs()

	return h
}

func (h *PrettyHandler) initColorFuncs() {
	if !h.opts.UseColor {
		noColor := func(a ...any) string { return fmt.Sprint(a...) }
		h.colorTime = noColor
		h.colorMessage = noColor
		h.colorSource = noColor
		h.colorFields = noColor
		h.colorLevel = map[slog.Level]func(...any) string{
			slog.LevelDebug: noColor,
			slog.LevelInfo:  noColor,
			slog.LevelWarn:  noColor,
			slog.LevelError: noColor,
		}
		return
	}

	h.colorTime = color.New(color.FgHiBlack).SprintFunc()
	h.colorMessage = color.New(color.FgCyan).SprintFunc()
	h.colorSource = color.New(color.FgHiBlack).SprintFunc()
	h.colorFields = color.New(color.FgWhite).SprintFunc()
	h.colorLevel = map[slog.Level]func(...any) string{
		slog.LevelDebug: color.New(color.FgMagenta).SprintFunc(),
		slog.LevelInfo:  color.New(color.FgBlue).SprintFunc(),
		slog.LevelWarn:  color.New(color.FgYellow).SprintFunc(),
		slog.LevelError: color.New(color.FgRed).SprintFunc(),
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Slog.Level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := bufPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufPool.Put(buf)
	}()

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opts.DisableTimestamp {
		buf.WriteString(h.colorTime(r.Time.Format(h.opts.TimeFormat)))
		buf.WriteString(h.opts.FieldSeparator)
	}

	buf.WriteString(h.formatLevel(r.Level))
	buf.WriteString(h.opts.FieldSeparator)

	if h.opts.ShowSource {
		if source := h.extractSource(r.PC); source != "" {
			buf.WriteString(h.colorSource(source))
			buf.WriteString(h.opts.FieldSeparator)
		}
	}

	buf.WriteString(h.colorMessage(r.Message))

	if attrs := h.collectAttributes(r); len(attrs) > 0 {
		buf.WriteString(h.opts.FieldSeparator)
		if err := h.formatAttributes(buf, attrs); err != nil {
			fmt.Fprintf(buf, "(error formatting attributes: %v)", err)
		}
	}

	buf.WriteByte('\n')
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clone := &PrettyHandler{
		opts:   h.opts,
		writer: h.writer,
		mu:     &sync.Mutex{},
		groups: append([]string(nil), h.groups...),
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
	clone.initColorFuncs()

	return clone
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clone := &PrettyHandler{
		opts:   h.opts,
		writer: h.writer,
		mu:     &sync.Mutex{},
		groups: append(append([]string(nil), h.groups...), name),
		attrs:  append([]slog.Attr(nil), h.attrs...),
	}
	clone.initColorFuncs()

	return clone
}

func (h *PrettyHandler) formatLevel(level slog.Level) string {
	s := fmt.Sprintf("%-*s", h.opts.LevelWidth, strings.ToUpper(level.String()))

	if colorFunc, ok := h.colorLevel[level]; ok {
		return colorFunc(s)
	}
	return s
}

func (h *PrettyHandler) extractSource(pc uintptr) string {
	if pc == 0 {
		return ""
	}

	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.Function == "" {
		return ""
	}

	file := frame.File
	if !h.opts.FullSource {
		file = filepath.Base(file)
	}

	return fmt.Sprintf("%s:%d", file, frame.Line)
}

func (h *PrettyHandler) collectAttributes(r slog.Record) map[string]any {
	attrs := make(map[string]any)

	current := attrs
	for _, group := range h.groups {
		nested := make(map[string]any)
		current[group] = nested
		current = nested
	}

	for _, attr := range h.attrs {
		h.addAttribute(current, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		h.addAttribute(current, attr)
		return true
	})

	h.pruneEmptyGroups(attrs)

	return attrs
}

func (h *PrettyHandler) addAttribute(attrs map[string]any, attr slog.Attr) {
	value := attr.Value.Resolve()

	if value.Kind() == slog.KindGroup {
		group := make(map[string]any)
		for _, ga := range value.Group() {
			h.addAttribute(group, ga)
		}
		if len(group) > 0 {
			attrs[attr.Key] = group
		}
		return
	}

	switch value.Kind() {
	case slog.KindTime:
		attrs[attr.Key] = value.Time().Format(h.opts.TimeFormat)
	case slog.KindDuration:
		attrs[attr.Key] = value.Duration().String()
	default:
		attrs[attr.Key] = value.Any()
	}
}

func (h *PrettyHandler) pruneEmptyGroups(attrs map[string]any) {
	for key, value := range attrs {
		if nested, ok := value.(map[string]any); ok {
			h.pruneEmptyGroups(nested)
			if len(nested) == 0 {
				delete(attrs, key)
			}
		}
	}
}

func (h *PrettyHandler) formatAttributes(buf *bytes.Buffer, attrs map[string]any) error {
	var jsonBuf bytes.Buffer
	encoder := json.NewEncoder(&jsonBuf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(attrs); err != nil {
		return err
	}

	buf.WriteString(h.colorFields(string(bytes.TrimRight(jsonBuf.Bytes(), "\n"))))

	return nil
}
