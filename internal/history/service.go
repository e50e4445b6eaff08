package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justchokingaround/watchengine/internal/database"
)

// Record is the persisted watch progress of one episode
type Record struct {
	SeriesID        string
	SeriesTitle     string
	EpisodeID       string
	EpisodeNumber   int
	ProgressSeconds int
	DurationSeconds int
	LastWatchedAt   time.Time
	Language        string
	Provider        string
}

// Percent returns the watched share of the episode, 0-100
func (r Record) Percent() float64 {
	if r.DurationSeconds <= 0 {
		return 0
	}
	return float64(r.ProgressSeconds) / float64(r.DurationSeconds) * 100
}

// ErrInvalidRecord is returned for records that must never be stored
var ErrInvalidRecord = errors.New("invalid history record")

// Service stores history records in the database
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// ListOptions filters List
type ListOptions struct {
	SeriesID string
	Limit    int // 0 = no limit
}

// NewService creates a new history service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Validate rejects records with unknown duration or progress beyond it
func (r Record) Validate() error {
	switch {
	case r.EpisodeID == "":
		return fmt.Errorf("%w: missing episode id", ErrInvalidRecord)
	case r.DurationSeconds <= 0:
		return fmt.Errorf("%w: unknown duration", ErrInvalidRecord)
	case r.ProgressSeconds < 0 || r.ProgressSeconds > r.DurationSeconds:
		return fmt.Errorf("%w: progress %d outside 0..%d", ErrInvalidRecord, r.ProgressSeconds, r.DurationSeconds)
	}
	return nil
}

// Upsert creates or replaces the record for the episode and language
func (s *Service) Upsert(ctx context.Context, record Record) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	if record.LastWatchedAt.IsZero() {
		record.LastWatchedAt = s.now()
	}

	row := toRow(record)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "episode_id"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"series_id", "series_title", "episode_number", "progress_seconds",
			"duration_seconds", "provider", "last_watched_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save history for %s: %w", record.EpisodeID, err)
	}
	return nil
}

// Query returns the most recently watched record for an episode, or nil when there is none
func (s *Service) Query(ctx context.Context, episodeID string) (*Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var row database.History
	err := s.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("last_watched_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	record := fromRow(row)
	return &record, nil
}

// List returns records, most recent first
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.WithContext(ctx).Model(&database.History{})
	if opts.SeriesID != "" {
		query = query.Where("series_id = ?", opts.SeriesID)
	}
	query = query.Order("last_watched_at DESC")
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var rows []database.History
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = fromRow(row)
	}
	return records, nil
}

// DeleteBySeries removes all records of a series
func (s *Service) DeleteBySeries(ctx context.Context, seriesID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.WithContext(ctx).Where("series_id = ?", seriesID).Delete(&database.History{}).Error
}

// Cleanup removes records not touched since before cutoff
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	cutoff := s.now().Add(-olderThan)
	result := s.db.WithContext(ctx).Where("last_watched_at < ?", cutoff).Delete(&database.History{})
	return result.RowsAffected, result.Error
}

func toRow(r Record) database.History {
	return database.History{
		SeriesID:        r.SeriesID,
		SeriesTitle:     r.SeriesTitle,
		EpisodeID:       r.EpisodeID,
		EpisodeNumber:   r.EpisodeNumber,
		ProgressSeconds: r.ProgressSeconds,
		DurationSeconds: r.DurationSeconds,
		Language:        r.Language,
		Provider:        r.Provider,
		LastWatchedAt:   r.LastWatchedAt,
	}
}

func fromRow(row database.History) Record {
	return Record{
		SeriesID:        row.SeriesID,
		SeriesTitle:     row.SeriesTitle,
		EpisodeID:       row.EpisodeID,
		EpisodeNumber:   row.EpisodeNumber,
		ProgressSeconds: row.ProgressSeconds,
		DurationSeconds: row.DurationSeconds,
		Language:        row.Language,
		Provider:        row.Provider,
		LastWatchedAt:   row.LastWatchedAt,
	}
}
