package config

import (
	"os"
	"strings"
)

const (
	DefaultBackfillMaxLimit = 500
	DefaultBackfillTopic    = "telco-sync-backfill"
)

// SyncOnWriteEnabled gates the event-driven path run after qualification/order writes.
//
// Set via env:
// - SYNC_ON_WRITE=false
func SyncOnWriteEnabled() bool {
	return EnvBoolDefault("SYNC_ON_WRITE", true)
}

// SyncBackfillMaxLimit caps the page size a caller may request for one backfill pass.
func SyncBackfillMaxLimit() int {
	n := intFromEnv("SYNC_BACKFILL_MAX_LIMIT", DefaultBackfillMaxLimit)
	if n <= 0 {
		return DefaultBackfillMaxLimit
	}
	return n
}

// SyncBackfillViaPubSub dispatches queued backfill runs to Pub/Sub instead of processing inline.
func SyncBackfillViaPubSub() bool {
	return EnvBoolDefault("SYNC_BACKFILL_PUBSUB", false)
}

func SyncBackfillTopic() string {
	if v := strings.TrimSpace(os.Getenv("SYNC_BACKFILL_TOPIC")); v != "" {
		return v
	}
	return DefaultBackfillTopic
}

func SyncBackfillCreateTopic() bool {
	return EnvBoolDefault("SYNC_BACKFILL_CREATE_TOPIC", false)
}

// SyncLedgerDSN selects the tombstone/ledger backend: "db" (default), "file:///path.json", "memory://".
func SyncLedgerDSN() string {
	return strings.TrimSpace(os.Getenv("SYNC_LEDGER_DSN"))
}

// SyncLedgerCacheEnabled puts a redis read-through cache in front of the ledger.
func SyncLedgerCacheEnabled() bool {
	return EnvBoolDefault("SYNC_LEDGER_CACHE", true)
}

func EnvBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
