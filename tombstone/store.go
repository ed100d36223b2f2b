package tombstone

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

const moduleName = "tombstone"

// Store is the durable record of deliberately deleted derived entities and of processed sources.
// Reads never fail: faults are logged and answered with false. Writes are best-effort except
// Claim and ClearHistory, which report their errors.
type Store struct {
	backend  Backend
	cache    *redisCache
	logger   *logrus.Logger
	claimTTL time.Duration
}

type Option func(*Store)

// WithRedisCache puts a read-through cache of positive facts in front of the backend.
func WithRedisCache(rdb *redis.Client) Option {
	return func(s *Store) {
		if rdb != nil {
			s.cache = &redisCache{rdb: rdb, prefix: defaultCachePrefix}
		}
	}
}

func WithClaimTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.claimTTL = ttl
		}
	}
}

func NewStore(backend Backend, logger *logrus.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Store{backend: backend, logger: logger, claimTTL: DefaultClaimTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkDeleted tombstones entityId. sourceId may be empty when the source is unknown.
func (s *Store) MarkDeleted(ctx context.Context, kind, entityId, sourceId string) {
	t := Tombstone{
		EntityKind: kind,
		EntityId:   entityId,
		SourceId:   sourceId,
		DeletedBy:  utils.GetActorFromContext(ctx),
		DeletedAt:  time.Now().UTC(),
	}
	if err := s.backend.MarkDeleted(ctx, t); err != nil {
		config.LogError(s.logger, moduleName, "MarkDeleted", "tombstone not persisted; entity may be recreated by a later sync", t, err)
		return
	}
	s.cacheAdd(ctx, cacheDeletedEntities, entityId)
	if sourceId != "" {
		s.cacheAdd(ctx, cacheTombstonedSources, sourceMember(kind, sourceId))
	}
}

func (s *Store) IsDeleted(ctx context.Context, entityId string) bool {
	return s.lookup(ctx, "IsDeleted", cacheDeletedEntities, entityId, s.backend.IsDeleted)
}

// WasSourceTombstoned reports whether a tombstone of entityKind references sourceId.
// Tombstones of other kinds never match, even when the ids collide.
func (s *Store) WasSourceTombstoned(ctx context.Context, entityKind, sourceId string) bool {
	if sourceId == "" {
		return false
	}
	return s.lookup(ctx, "WasSourceTombstoned", cacheTombstonedSources, sourceMember(entityKind, sourceId),
		func(ctx context.Context, _ string) (bool, error) {
			return s.backend.WasSourceTombstoned(ctx, entityKind, sourceId)
		})
}

func sourceMember(entityKind, sourceId string) string {
	return entityKind + "|" + sourceId
}

func (s *Store) MarkSynced(ctx context.Context, entityId, sourceId string) {
	if err := s.backend.MarkSynced(ctx, entityId, sourceId); err != nil {
		config.LogError(s.logger, moduleName, "MarkSynced", "sync ledger not updated; source may be processed again", map[string]string{
			"entityId": entityId,
			"sourceId": sourceId,
		}, err)
		return
	}
	s.cacheAdd(ctx, cacheSyncedSources, sourceId)
}

func (s *Store) WasSynced(ctx context.Context, sourceId string) bool {
	return s.lookup(ctx, "WasSynced", cacheSyncedSources, sourceId, s.backend.WasSynced)
}

// Claim takes the source for processing. false, nil means the source already succeeded.
func (s *Store) Claim(ctx context.Context, kind, sourceId string) (bool, error) {
	return s.backend.Claim(ctx, kind, sourceId, s.claimTTL)
}

// Release marks a claimed source as failed so a later pass retries it.
func (s *Store) Release(ctx context.Context, sourceId string, cause error) {
	if err := s.backend.Release(ctx, sourceId, cause); err != nil {
		config.LogError(s.logger, moduleName, "Release", "claim not released; source waits for the claim ttl", sourceId, err)
	}
}

// ClearHistory wipes both ledgers. Maintenance only.
func (s *Store) ClearHistory(ctx context.Context) error {
	if err := s.backend.ClearHistory(ctx); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.clear(ctx); err != nil {
			return err
		}
	}
	s.logger.WithFields(logrus.Fields{
		"module": moduleName,
		"actor":  utils.GetActorFromContext(ctx),
	}).Warn("sync history cleared")
	return nil
}

func (s *Store) History(ctx context.Context) (History, error) {
	return s.backend.Snapshot(ctx)
}

func (s *Store) lookup(ctx context.Context, funcName, set, key string, read func(context.Context, string) (bool, error)) bool {
	if key == "" {
		return false
	}
	if s.cache != nil {
		hit, err := s.cache.has(ctx, set, key)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"module": moduleName, "funcName": funcName}).Warn("ledger cache read failed: " + err.Error())
		} else if hit {
			return true
		}
	}
	ok, err := read(ctx, key)
	if err != nil {
		config.LogError(s.logger, moduleName, funcName, "ledger read failed; answering false", key, err)
		return false
	}
	if ok {
		s.cacheAdd(ctx, set, key)
	}
	return ok
}

func (s *Store) cacheAdd(ctx context.Context, set, member string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.add(ctx, set, member); err != nil {
		s.logger.WithFields(logrus.Fields{"module": moduleName, "set": set}).Warn("ledger cache write failed: " + err.Error())
	}
}
