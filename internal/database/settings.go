package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsStore is a string key-value store backed by the settings table
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore creates a settings store on db
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value for key. ok is false when no value is stored (not an error).
func (s *SettingsStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	if s.db == nil {
		return "", false, fmt.Errorf("database connection is nil")
	}

	var setting Setting
	err = s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return setting.Value, true, nil
}

// Set stores value under key, replacing any previous value
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&Setting{}).Error
}
