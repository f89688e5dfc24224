package service

import "context"

type ctxKey int

const (
	correlationKey ctxKey = iota
	skipKey
)

// ContextWithCorrelationID carries the inbound call's correlation id so
// outbound calls made while serving it can link back.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey).(string)
	return id, ok && id != ""
}

// WithoutCallLog marks outbound requests made with ctx as not logged.
func WithoutCallLog(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey, true)
}

func CallLogSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipKey).(bool)
	return skip
}
