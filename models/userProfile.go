package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/telco_backend/annotation"
	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

// UserProfile is owned by the registration flow; this service only reads it and maintains the address.
type UserProfile struct {
	ID              string             `gorm:"primary_key;size:64" json:"id"`
	Email           string             `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name            string             `gorm:"size:255" json:"name"`
	Phone           string             `gorm:"size:32" json:"phone"`
	Address         annotation.Address `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	AddressSourceId *string            `gorm:"size:64;index" json:"addressSourceId"`
	AddressSyncedAt *time.Time         `json:"addressSyncedAt"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updatedAt"`
}

// HasSyncedAddress reports whether the current address was written by reconciliation.
func (u UserProfile) HasSyncedAddress() bool {
	return u.AddressSourceId != nil && *u.AddressSourceId != ""
}

func GetUserProfile(ctx context.Context, id string) (*UserProfile, error) {
	db := config.GetDB()
	var user UserProfile
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserProfileByEmail matches email case-insensitively, since profiles keep the casing the
// registration flow received. It returns (nil, nil) when no profile carries email.
func GetUserProfileByEmail(ctx context.Context, email string) (*UserProfile, error) {
	db := config.GetDB()
	var user UserProfile
	err := db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("id").
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUserAddress overwrites the address and its provenance.
func UpdateUserAddress(ctx context.Context, userId string, addr annotation.Address, sourceId string, syncedAt time.Time) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&UserProfile{}).Where("id = ?", userId).Updates(map[string]interface{}{
		"address_street":      addr.Street,
		"address_city":        addr.City,
		"address_district":    addr.District,
		"address_province":    addr.Province,
		"address_postal_code": addr.PostalCode,
		"address_source_id":   sourceId,
		"address_synced_at":   syncedAt,
		"updated_at":          syncedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// ClearUserAddress empties the address and returns the profile as it was before.
func ClearUserAddress(ctx context.Context, userId string) (*UserProfile, error) {
	before, err := GetUserProfile(ctx, userId)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&UserProfile{}).Where("id = ?", userId).Updates(map[string]interface{}{
		"address_street":      "",
		"address_city":        "",
		"address_district":    "",
		"address_province":    "",
		"address_postal_code": "",
		"address_source_id":   nil,
		"address_synced_at":   nil,
		"updated_at":          time.Now().UTC(),
	}).Error
	if err != nil {
		return nil, err
	}
	return before, nil
}
