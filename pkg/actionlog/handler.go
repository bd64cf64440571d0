package actionlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Enqueuer accepts entries for delivery. Both Client and Queue implement it.
type Enqueuer interface {
	Enqueue(ctx context.Context, e Entry, stream string) error
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// UserName and CompanyID are used when a record carries no "user" or
	// "company" attribute.
	UserName  string
	CompanyID string
	Stream    string
	Level     slog.Leveler
}

// Handler is a slog.Handler that turns records into entries: the message
// becomes the event and the remaining attributes the details.
type Handler struct {
	q      Enqueuer
	opts   HandlerOptions
	attrs  []slog.Attr
	groups []string
}

func NewHandler(q Enqueuer, opts HandlerOptions) *Handler {
	if opts.UserName == "" {
		opts.UserName = "system"
	}
	if opts.CompanyID == "" {
		opts.CompanyID = "default"
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &Handler{q: q, opts: opts}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	e := Entry{
		UserName:  h.opts.UserName,
		CompanyID: h.opts.CompanyID,
		Event:     r.Message,
		Level:     levelOf(r.Level),
	}
	if !r.Time.IsZero() {
		e.Timestamp = FormatTime(r.Time)
	}

	var details []string
	add := func(a slog.Attr) {
		switch a.Key {
		case "user":
			e.UserName = a.Value.String()
			return
		case "company":
			e.CompanyID = a.Value.String()
			return
		}
		details = appendAttr(details, h.groups, a)
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})

	e.Details = strings.Join(details, " ")
	if e.Details == "" {
		e.Details = r.Message
	}
	return h.q.Enqueue(ctx, e, h.opts.Stream)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string{}, h.groups...), name)
	return &h2
}

func appendAttr(dst []string, groups []string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string{}, groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			dst = appendAttr(dst, sub, ga)
		}
		return dst
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, fmt.Sprintf("%s=%v", key, a.Value.Any()))
}

func levelOf(l slog.Level) Level {
	switch {
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarning
	default:
		return LevelInfo
	}
}
