package reconcile

import (
	"errors"

	"bitbucket.org/mmdatafocus/telco_backend/models"
)

var (
	ErrNoAddress    = errors.New("no address extracted")
	ErrNoEmail      = errors.New("no linking email resolved")
	ErrUserNotFound = errors.New("no user profile for email")
)

// SkipReason says why a document produced no mutation. Empty means it was not skipped.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipNoAddress     SkipReason = "no_address"
	SkipNoEmail       SkipReason = "no_email"
	SkipUserNotFound  SkipReason = "user_not_found"
	SkipTombstoned    SkipReason = "tombstoned"
	SkipUnchanged     SkipReason = "unchanged"
	SkipNotCompleted  SkipReason = "not_completed"
	SkipNoValidLines  SkipReason = "no_valid_lines"
	SkipAlreadySynced SkipReason = "already_synced"
	SkipClaimHeld     SkipReason = "claim_held"
)

// Err maps missing-link and not-found reasons to their sentinel errors.
func (s SkipReason) Err() error {
	switch s {
	case SkipNoAddress:
		return ErrNoAddress
	case SkipNoEmail:
		return ErrNoEmail
	case SkipUserNotFound:
		return ErrUserNotFound
	}
	return nil
}

type Result struct {
	Updated bool
	Skip    SkipReason
	Created []models.InventoryProduct
	// Rejected holds the indexes of order items with neither offering id nor name.
	Rejected []int
}

func skipped(reason SkipReason) Result {
	return Result{Skip: reason}
}
