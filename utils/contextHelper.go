package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/telco_backend/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyActor         = appctx.ContextKeyActor
	ContextKeySyncTrigger   = appctx.ContextKeySyncTrigger
)

const SystemActor = "System"

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// GetActorFromContext falls back to SystemActor so ledger rows always carry a name.
func GetActorFromContext(ctx context.Context) string {
	if actor, ok := appctx.GetString(ctx, ContextKeyActor); ok && actor != "" {
		return actor
	}
	return SystemActor
}

func SetActorInContext(ctx context.Context, actor string) context.Context {
	return appctx.Set(ctx, ContextKeyActor, actor)
}

func GetSyncTriggerFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeySyncTrigger)
}

func SetSyncTriggerInContext(ctx context.Context, trigger string) context.Context {
	return appctx.Set(ctx, ContextKeySyncTrigger, trigger)
}
