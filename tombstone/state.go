package tombstone

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// persistedState is the on-disk layout: deleted entities by entity id and ledger entries by source id.
type persistedState struct {
	DeletedEntities map[string]Tombstone   `json:"deletedEntities"`
	SyncedSources   map[string]LedgerEntry `json:"syncedSources"`
}

func newPersistedState() *persistedState {
	return &persistedState{
		DeletedEntities: map[string]Tombstone{},
		SyncedSources:   map[string]LedgerEntry{},
	}
}

// stateBackend keeps both ledgers in process memory and hands every mutation to save.
// It serves single-process deployments only.
type stateBackend struct {
	mu    sync.Mutex
	state *persistedState
	save  func(*persistedState) error
	now   func() time.Time
}

func NewMemoryBackend() Backend {
	return &stateBackend{
		state: newPersistedState(),
		save:  func(*persistedState) error { return nil },
		now:   time.Now,
	}
}

// NewFileBackend loads path if it exists and rewrites it atomically on every change.
func NewFileBackend(path string) (Backend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("tombstone file path is required")
	}
	state := newPersistedState()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, state); err != nil {
			return nil, err
		}
		if state.DeletedEntities == nil {
			state.DeletedEntities = map[string]Tombstone{}
		}
		if state.SyncedSources == nil {
			state.SyncedSources = map[string]LedgerEntry{}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	return &stateBackend{
		state: state,
		save:  func(s *persistedState) error { return writeStateFile(path, s) },
		now:   time.Now,
	}, nil
}

func writeStateFile(path string, s *persistedState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (b *stateBackend) MarkDeleted(_ context.Context, t Tombstone) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.DeletedEntities[t.EntityId] = t
	return b.save(b.state)
}

func (b *stateBackend) IsDeleted(_ context.Context, entityId string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.state.DeletedEntities[entityId]
	return ok, nil
}

func (b *stateBackend) WasSourceTombstoned(_ context.Context, entityKind, sourceId string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.state.DeletedEntities {
		if t.SourceId != "" && t.SourceId == sourceId && t.EntityKind == entityKind {
			return true, nil
		}
	}
	return false, nil
}

func (b *stateBackend) MarkSynced(_ context.Context, entityId, sourceId string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.state.SyncedSources[sourceId]
	if !ok {
		entry = LedgerEntry{SourceKind: "unknown", SourceId: sourceId}
	}
	if !containsString(entry.EntityIds, entityId) {
		entry.EntityIds = append(entry.EntityIds, entityId)
	}
	entry.Status = StatusSucceeded
	entry.LastError = ""
	entry.UpdatedAt = b.now()
	b.state.SyncedSources[sourceId] = entry
	return b.save(b.state)
}

func (b *stateBackend) WasSynced(_ context.Context, sourceId string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.state.SyncedSources[sourceId]
	return ok && entry.Status == StatusSucceeded, nil
}

func (b *stateBackend) Claim(_ context.Context, sourceKind, sourceId string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	entry, ok := b.state.SyncedSources[sourceId]
	if ok {
		switch {
		case entry.Status == StatusSucceeded:
			return false, nil
		case entry.Status == StatusStarted && now.Sub(entry.UpdatedAt) < ttl:
			return false, ErrClaimHeld
		}
	}
	b.state.SyncedSources[sourceId] = LedgerEntry{
		SourceKind: sourceKind,
		SourceId:   sourceId,
		Status:     StatusStarted,
		EntityIds:  entry.EntityIds,
		UpdatedAt:  now,
	}
	if err := b.save(b.state); err != nil {
		if ok {
			b.state.SyncedSources[sourceId] = entry
		} else {
			delete(b.state.SyncedSources, sourceId)
		}
		return false, err
	}
	return true, nil
}

func (b *stateBackend) Release(_ context.Context, sourceId string, cause error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.state.SyncedSources[sourceId]
	if !ok || entry.Status != StatusStarted {
		return nil
	}
	entry.Status = StatusFailed
	if cause != nil {
		entry.LastError = cause.Error()
	}
	entry.UpdatedAt = b.now()
	b.state.SyncedSources[sourceId] = entry
	return b.save(b.state)
}

func (b *stateBackend) ClearHistory(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cleared := newPersistedState()
	if err := b.save(cleared); err != nil {
		return err
	}
	b.state = cleared
	return nil
}

func (b *stateBackend) Snapshot(_ context.Context) (History, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var h History
	for _, t := range b.state.DeletedEntities {
		h.Tombstones = append(h.Tombstones, t)
	}
	for _, e := range b.state.SyncedSources {
		e.EntityIds = append([]string(nil), e.EntityIds...)
		h.Ledger = append(h.Ledger, e)
	}
	sort.Slice(h.Tombstones, func(i, j int) bool { return h.Tombstones[i].EntityId < h.Tombstones[j].EntityId })
	sort.Slice(h.Ledger, func(i, j int) bool { return h.Ledger[i].SourceId < h.Ledger[j].SourceId })
	return h, nil
}
