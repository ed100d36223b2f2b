package models

import (
	"errors"

	"bitbucket.org/mmdatafocus/telco_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()
	if db == nil {
		return errors.New("db is nil")
	}
	return db.AutoMigrate(
		&QualificationCheck{},
		&ProductOrder{}, &OrderItem{},
		&UserProfile{},
		&InventoryProduct{},
		&SyncLedgerEntry{}, &SyncTombstone{},
		&SyncRun{}, &SyncError{},
	)
}
