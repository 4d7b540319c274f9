package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type logFormat int

const (
	formatJSON logFormat = iota
	formatKV
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as single lines with a stable key order,
// either key=value or JSON.
type structuredHandler struct {
	cfg        handlerConfig
	orderIndex map[string]int
	attrs      []slog.Attr
	groups     []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	idx := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		idx[k] = i
	}
	return &structuredHandler{cfg: cfg, orderIndex: idx}
}

// Enabled implements slog.Handler.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.cfg.level != nil {
		min = h.cfg.level.Level()
	}
	return level >= min
}

// WithAttrs implements slog.Handler.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

type kv struct {
	key string
	val any
}

// Handle implements slog.Handler.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	pairs := make([]kv, 0, 8+r.NumAttrs()+len(h.attrs))
	pairs = append(pairs,
		kv{"ts", r.Time.Format(time.RFC3339)},
		kv{"level", normalizeLevel(r.Level.String())},
	)

	collect := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		pairs = append(pairs, kv{key, a.Value.Any()})
	}

	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	if r.Message != "" && !hasKey(pairs, "event") {
		pairs = append(pairs, kv{"event", r.Message})
	}

	// Context metadata wins only if the record did not carry it explicitly.
	if rid := RIDFrom(ctx); rid != "" && !hasKey(pairs, "rid") {
		pairs = append(pairs, kv{"rid", rid})
	}
	if id := UpdateIDFrom(ctx); id != 0 && !hasKey(pairs, "update_id") {
		pairs = append(pairs, kv{"update_id", id})
	}
	if id := UserIDFrom(ctx); id != 0 && !hasKey(pairs, "user_id") {
		pairs = append(pairs, kv{"user_id", id})
	}
	if id := ChatIDFrom(ctx); id != 0 && !hasKey(pairs, "chat_id") {
		pairs = append(pairs, kv{"chat_id", id})
	}
	if handler := HandlerFrom(ctx); handler != "" && !hasKey(pairs, "handler") {
		pairs = append(pairs, kv{"handler", handler})
	}

	ordered := h.order(pairs)

	var line []byte
	switch h.cfg.format {
	case formatKV:
		line = renderKV(ordered)
	default:
		line = renderJSON(ordered)
	}
	line = append(line, '\n')
	return h.cfg.writer.Write(line)
}

func hasKey(pairs []kv, key string) bool {
	for _, p := range pairs {
		if p.key == key {
			return true
		}
	}
	return false
}

// order applies the configured key order; unknown keys keep insertion order
// after the known ones. Duplicate keys keep the first occurrence.
func (h *structuredHandler) order(pairs []kv) []kv {
	seen := make(map[string]struct{}, len(pairs))
	known := make([]kv, 0, len(pairs))
	unknown := make([]kv, 0)
	byKey := make(map[string]kv, len(pairs))
	for _, p := range pairs {
		if _, dup := seen[p.key]; dup {
			continue
		}
		seen[p.key] = struct{}{}
		if _, ok := h.orderIndex[p.key]; ok {
			byKey[p.key] = p
		} else {
			unknown = append(unknown, p)
		}
	}
	for _, key := range h.cfg.keyOrder {
		if p, ok := byKey[key]; ok {
			known = append(known, p)
		}
	}
	return append(known, unknown...)
}

func renderKV(pairs []kv) []byte {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(kvValue(p.val))
	}
	return []byte(b.String())
}

func kvValue(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case time.Duration:
		s = t.String()
	case error:
		s = t.Error()
	default:
		s = fmt.Sprint(t)
	}
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}

func renderJSON(pairs []kv) []byte {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		keyData, _ := json.Marshal(p.key)
		b.Write(keyData)
		b.WriteByte(':')
		val := p.val
		if d, ok := val.(time.Duration); ok {
			val = d.String()
		}
		if e, ok := val.(error); ok {
			val = e.Error()
		}
		data, err := json.Marshal(val)
		if err != nil {
			data, _ = json.Marshal(fmt.Sprint(val))
		}
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String())
}
