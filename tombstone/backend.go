package tombstone

import (
	"context"
	"errors"
	"time"
)

// ErrClaimHeld means another worker holds a fresh claim on the source.
var ErrClaimHeld = errors.New("sync claim held by another worker")

// DefaultClaimTTL is how long a STARTED claim is honoured before it may be re-taken.
const DefaultClaimTTL = 5 * time.Minute

type Tombstone struct {
	EntityKind string    `json:"entityKind"`
	EntityId   string    `json:"entityId"`
	SourceId   string    `json:"sourceId,omitempty"`
	DeletedBy  string    `json:"deletedBy,omitempty"`
	DeletedAt  time.Time `json:"deletedAt"`
}

type LedgerStatus string

const (
	StatusStarted   LedgerStatus = "STARTED"
	StatusSucceeded LedgerStatus = "SUCCEEDED"
	StatusFailed    LedgerStatus = "FAILED"
)

type LedgerEntry struct {
	SourceKind string       `json:"sourceKind,omitempty"`
	SourceId   string       `json:"sourceId"`
	Status     LedgerStatus `json:"status"`
	EntityIds  []string     `json:"entityIds,omitempty"`
	LastError  string       `json:"lastError,omitempty"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// History is the full content of both ledgers.
type History struct {
	Tombstones []Tombstone   `json:"tombstones"`
	Ledger     []LedgerEntry `json:"ledger"`
}

// Backend persists tombstones and the sync ledger. Reads of absent keys return false, nil.
type Backend interface {
	MarkDeleted(ctx context.Context, t Tombstone) error
	IsDeleted(ctx context.Context, entityId string) (bool, error)
	// WasSourceTombstoned only considers tombstones of entityKind.
	WasSourceTombstoned(ctx context.Context, entityKind, sourceId string) (bool, error)
	MarkSynced(ctx context.Context, entityId, sourceId string) error
	WasSynced(ctx context.Context, sourceId string) (bool, error)
	// Claim inserts a STARTED entry unless one exists. It returns false, nil when the source
	// already succeeded and ErrClaimHeld when a claim younger than ttl is held.
	Claim(ctx context.Context, sourceKind, sourceId string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, sourceId string, cause error) error
	ClearHistory(ctx context.Context) error
	Snapshot(ctx context.Context) (History, error)
}
