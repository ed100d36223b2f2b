package tombstone

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/telco_backend/config"
)

// NewBackendFromDSN selects a backend: "" or "db" uses db, "file:///path.json" a JSON file,
// "memory://" process memory.
func NewBackendFromDSN(dsn string, db *gorm.DB) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || dsn == "db" || dsn == "database" {
		if db == nil {
			return nil, errors.New("database ledger requested but db is nil")
		}
		return NewGormBackend(db), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "file":
		path := parsed.Path
		if path == "" {
			path = parsed.Opaque
		}
		if path == "" {
			path = parsed.Host
		}
		if parsed.Scheme == "" {
			path = dsn
		}
		return NewFileBackend(path)
	case "memory", "mem", "inmem":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend scheme: %s", parsed.Scheme)
	}
}

// NewStoreFromEnv builds the store from SYNC_LEDGER_DSN and SYNC_LEDGER_CACHE.
func NewStoreFromEnv(db *gorm.DB, rdb *redis.Client, logger *logrus.Logger) (*Store, error) {
	backend, err := NewBackendFromDSN(config.SyncLedgerDSN(), db)
	if err != nil {
		return nil, err
	}
	var opts []Option
	if config.SyncLedgerCacheEnabled() {
		opts = append(opts, WithRedisCache(rdb))
	}
	return NewStore(backend, logger, opts...), nil
}
