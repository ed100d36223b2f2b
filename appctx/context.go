package appctx

import "context"

// ContextKey types every context key. config and utils both import this package.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeyActor names the operator (or system job) performing the request.
	// Recorded on tombstones and sync runs.
	ContextKeyActor = ContextKey("Actor")

	// ContextKeySyncTrigger marks where a reconciliation was started from (event, manual, system).
	ContextKeySyncTrigger = ContextKey("SyncTrigger")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
