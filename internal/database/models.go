package database

import (
	"time"

	"gorm.io/gorm"
)

// History is one watch-progress row per episode and language
type History struct {
	ID              uint      `gorm:"primaryKey"`
	SeriesID        string    `gorm:"index"`
	SeriesTitle     string    `gorm:"default:''"`
	EpisodeID       string    `gorm:"not null;uniqueIndex:idx_history_episode_lang"`
	EpisodeNumber   int       `gorm:"default:0"`
	ProgressSeconds int       `gorm:"not null"`
	DurationSeconds int       `gorm:"not null"`
	Language        string    `gorm:"not null;uniqueIndex:idx_history_episode_lang"` // sub or dub
	Provider        string    `gorm:"default:''"`
	LastWatchedAt   time.Time `gorm:"index"`
}

// TableName overrides the table name
func (History) TableName() string {
	return "history"
}

// Setting represents a key-value store for application settings
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&History{},
		&Setting{},
	)
}
