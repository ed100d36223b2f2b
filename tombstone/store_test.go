package tombstone

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sqliteBackend(t *testing.T) Backend {
	t.Helper()
	conn, err := config.OpenDatabase(config.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := conn.AutoMigrate(&models.SyncLedgerEntry{}, &models.SyncTombstone{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormBackend(conn)
}

func backends() map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend { return NewMemoryBackend() },
		"file": func(t *testing.T) Backend {
			b, err := NewFileBackend(filepath.Join(t.TempDir(), "ledger.json"))
			if err != nil {
				t.Fatalf("file backend: %v", err)
			}
			return b
		},
		"gorm": sqliteBackend,
	}
}

func TestStore_Contract(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := utils.SetActorInContext(context.Background(), "operator@telco")
			s := NewStore(newBackend(t), quietLogger())

			if s.IsDeleted(ctx, "P1") || s.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, "O1") || s.WasSynced(ctx, "O1") {
				t.Fatalf("absent keys must read false")
			}

			s.MarkSynced(ctx, "P1", "O1")
			s.MarkSynced(ctx, "P2", "O1")
			if !s.WasSynced(ctx, "O1") {
				t.Fatalf("expected O1 synced")
			}

			s.MarkDeleted(ctx, models.EntityKindInventoryProduct, "P1", "O1")
			if !s.IsDeleted(ctx, "P1") || !s.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, "O1") {
				t.Fatalf("expected tombstone for P1/O1")
			}
			if s.IsDeleted(ctx, "P2") {
				t.Fatalf("P2 was not deleted")
			}

			s.MarkDeleted(ctx, models.EntityKindUserAddress, "U1", "")
			if !s.IsDeleted(ctx, "U1") || s.WasSourceTombstoned(ctx, models.EntityKindUserAddress, "") {
				t.Fatalf("tombstone without source must only be found by entity id")
			}

			h, err := s.History(ctx)
			if err != nil {
				t.Fatalf("history: %v", err)
			}
			if len(h.Tombstones) != 2 || len(h.Ledger) != 1 || len(h.Ledger[0].EntityIds) != 2 {
				t.Fatalf("unexpected history: %+v", h)
			}
			for _, tomb := range h.Tombstones {
				if tomb.DeletedBy != "operator@telco" {
					t.Fatalf("expected actor on tombstone, got %q", tomb.DeletedBy)
				}
			}

			if err := s.ClearHistory(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if s.IsDeleted(ctx, "P1") || s.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, "O1") || s.WasSynced(ctx, "O1") {
				t.Fatalf("clear history must wipe both ledgers")
			}
		})
	}
}

func TestStore_ClaimLifecycle(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(newBackend(t), quietLogger())

			ok, err := s.Claim(ctx, models.SourceKindOrder, "O1")
			if err != nil || !ok {
				t.Fatalf("first claim: %v %v", ok, err)
			}
			if ok, err := s.Claim(ctx, models.SourceKindOrder, "O1"); ok || !errors.Is(err, ErrClaimHeld) {
				t.Fatalf("fresh claim must be held, got %v %v", ok, err)
			}
			if s.WasSynced(ctx, "O1") {
				t.Fatalf("a STARTED claim is not synced")
			}

			s.Release(ctx, "O1", errors.New("insert failed"))
			ok, err = s.Claim(ctx, models.SourceKindOrder, "O1")
			if err != nil || !ok {
				t.Fatalf("failed claim must be re-taken: %v %v", ok, err)
			}

			s.MarkSynced(ctx, "P1", "O1")
			ok, err = s.Claim(ctx, models.SourceKindOrder, "O1")
			if err != nil || ok {
				t.Fatalf("succeeded source must be skipped, got %v %v", ok, err)
			}
		})
	}
}

func TestStore_StaleClaimIsRetaken(t *testing.T) {
	b := NewMemoryBackend().(*stateBackend)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	s := NewStore(b, quietLogger(), WithClaimTTL(time.Minute))
	ctx := context.Background()

	if ok, _ := s.Claim(ctx, models.SourceKindOrder, "O1"); !ok {
		t.Fatalf("first claim failed")
	}
	clock = clock.Add(30 * time.Second)
	if _, err := s.Claim(ctx, models.SourceKindOrder, "O1"); !errors.Is(err, ErrClaimHeld) {
		t.Fatalf("expected held claim, got %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if ok, err := s.Claim(ctx, models.SourceKindOrder, "O1"); !ok || err != nil {
		t.Fatalf("stale claim must be re-taken, got %v %v", ok, err)
	}
}

func TestStore_ClaimIsExclusiveUnderConcurrency(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			s := NewStore(newBackend(t), quietLogger())
			var (
				wg      sync.WaitGroup
				winners int32
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := s.Claim(context.Background(), models.SourceKindOrder, "O-race")
					if err != nil && !errors.Is(err, ErrClaimHeld) {
						t.Errorf("claim: %v", err)
						return
					}
					if ok {
						atomic.AddInt32(&winners, 1)
					}
				}()
			}
			wg.Wait()
			if winners != 1 {
				t.Fatalf("expected exactly 1 winner, got %d", winners)
			}
		})
	}
}

func TestFileBackend_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.json")
	ctx := context.Background()

	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := NewStore(b, quietLogger())
	s.MarkSynced(ctx, "P1", "O1")
	s.MarkDeleted(ctx, models.EntityKindInventoryProduct, "P1", "O1")

	reopened, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2 := NewStore(reopened, quietLogger())
	if !s2.WasSynced(ctx, "O1") || !s2.IsDeleted(ctx, "P1") || !s2.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, "O1") {
		t.Fatalf("ledger did not survive a restart")
	}
}

func TestStore_SourceTombstonesAreScopedByKind(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(newBackend(t), quietLogger())

			// a qualification and an order may share an id
			s.MarkDeleted(ctx, models.EntityKindUserAddress, "U1", "1001")
			if !s.WasSourceTombstoned(ctx, models.EntityKindUserAddress, "1001") {
				t.Fatalf("expected user_address tombstone for 1001")
			}
			if s.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, "1001") {
				t.Fatalf("user_address tombstone must not block inventory for 1001")
			}

			s.MarkDeleted(ctx, models.EntityKindInventoryProduct, "P1", "1001")
			if !s.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, "1001") {
				t.Fatalf("expected inventory_product tombstone for 1001")
			}
		})
	}
}

func TestStateBackend_ClearHistoryKeepsStateWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend().(*stateBackend)
	if err := b.MarkDeleted(ctx, Tombstone{EntityKind: models.EntityKindInventoryProduct, EntityId: "P1", SourceId: "O1"}); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}
	if err := b.MarkSynced(ctx, "P2", "O2"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	b.save = func(*persistedState) error { return errBroken }
	if err := b.ClearHistory(ctx); !errors.Is(err, errBroken) {
		t.Fatalf("expected save error, got %v", err)
	}
	if ok, _ := b.IsDeleted(ctx, "P1"); !ok {
		t.Fatalf("tombstone dropped although the clear was not persisted")
	}
	if ok, _ := b.WasSynced(ctx, "O2"); !ok {
		t.Fatalf("ledger dropped although the clear was not persisted")
	}
}

type brokenBackend struct{ Backend }

var errBroken = errors.New("store unavailable")

func (brokenBackend) MarkDeleted(context.Context, Tombstone) error                      { return errBroken }
func (brokenBackend) IsDeleted(context.Context, string) (bool, error)                   { return true, errBroken }
func (brokenBackend) WasSourceTombstoned(context.Context, string, string) (bool, error) { return true, errBroken }
func (brokenBackend) MarkSynced(context.Context, string, string) error                  { return errBroken }
func (brokenBackend) WasSynced(context.Context, string) (bool, error)                   { return true, errBroken }
func (brokenBackend) ClearHistory(context.Context) error                                { return errBroken }

func TestStore_FaultsAreBestEffort(t *testing.T) {
	ctx := context.Background()
	s := NewStore(brokenBackend{}, quietLogger())

	s.MarkDeleted(ctx, models.EntityKindInventoryProduct, "P1", "O1")
	s.MarkSynced(ctx, "P1", "O1")
	if s.IsDeleted(ctx, "P1") || s.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, "O1") || s.WasSynced(ctx, "O1") {
		t.Fatalf("read faults must answer false")
	}
	if err := s.ClearHistory(ctx); !errors.Is(err, errBroken) {
		t.Fatalf("ClearHistory must report errors, got %v", err)
	}
}

func TestNewBackendFromDSN(t *testing.T) {
	for _, dsn := range []string{"memory://", "file://" + filepath.Join(t.TempDir(), "l.json")} {
		if _, err := NewBackendFromDSN(dsn, nil); err != nil {
			t.Fatalf("%s: %v", dsn, err)
		}
	}
	if _, err := NewBackendFromDSN("db", nil); err == nil {
		t.Fatalf("db backend without a connection must fail")
	}
	if _, err := NewBackendFromDSN("s3://bucket/key", nil); err == nil {
		t.Fatalf("unknown scheme must fail")
	}
}
