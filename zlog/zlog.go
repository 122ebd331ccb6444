// Package zlog adapts github.com/rs/zerolog to the proxytrust.Logger
// interface.
//
// proxytrust emits slog-style alternating key/value attribute lists; the
// adapter converts them to zerolog fields on a warn-level event.
package zlog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Logger is a zerolog-backed implementation of proxytrust.Logger.
type Logger struct {
	log zerolog.Logger
}

// New wraps a zerolog.Logger for use as a proxytrust.Logger.
func New(log zerolog.Logger) *Logger {
	return &Logger{log: log}
}

// WarnContext logs msg at warn level with the attribute pairs attached as
// fields. A dangling or non-string key is recorded under the "!BADKEY" field,
// mirroring slog's behavior for malformed attribute lists.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	event := l.log.Warn().Ctx(ctx)

	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			event = event.Interface("!BADKEY", args[i])
			break
		}

		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}

		event = event.Interface(key, args[i+1])
	}

	event.Msg(msg)
}
