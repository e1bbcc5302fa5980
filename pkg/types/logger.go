package types

import "context"

// Logger receives structured log events from the engine. keyvals are
// alternating keys and values. A nil Logger disables logging.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}
