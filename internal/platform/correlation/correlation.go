// Package correlation carries a per-request id through contexts and stamps it on log records.
package correlation

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Header is the request/response header used to propagate the id.
const Header = "X-Correlation-ID"

const (
	maxIncomingLen = 64
	logKey         = "correlation_id"
)

type ctxKey struct{}

// NewID returns a random UUIDv4 string.
func NewID() string {
	return uuid.NewString()
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID reports the id attached to ctx, if any.
func ID(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// Ensure attaches incoming to ctx when it is a usable id: printable ASCII without spaces,
// at most 64 bytes. Anything else is replaced by a fresh id.
func Ensure(ctx context.Context, incoming string) (context.Context, string) {
	id := incoming
	if id == "" || len(id) > maxIncomingLen || strings.IndexFunc(id, unusable) >= 0 {
		id = NewID()
	}
	return WithID(ctx, id), id
}

func unusable(r rune) bool {
	return r > unicode.MaxASCII || !unicode.IsGraphic(r) || unicode.IsSpace(r)
}

// Handler decorates another slog.Handler with the context's correlation id.
type Handler struct {
	slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{Handler: inner}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r = r.Clone()
		r.AddAttrs(slog.String(logKey, id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.Handler.WithAttrs(attrs))
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.Handler.WithGroup(name))
}
