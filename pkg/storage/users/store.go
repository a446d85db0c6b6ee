package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"ghbridge/pkg/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements storage.UserStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	GitHubID  string    `gorm:"column:github_id;size:64;primaryKey"`
	Login     string    `gorm:"column:login;size:255;index"`
	DiscordID string    `gorm:"column:discord_id;size:64;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Open creates a GORM-backed user map store.
func Open(cfg storage.Config) (*Store, error) {
	db, err := storage.OpenGorm(cfg)
	if err != nil {
		return nil, err
	}
	return New(db, cfg.Table, cfg.AutoMigrate)
}

// New wraps an existing connection.
func New(db *gorm.DB, table string, autoMigrate bool) (*Store, error) {
	if table == "" {
		table = "ghbridge_users"
	}
	store := &Store{db: db, table: table}
	if autoMigrate {
		if err := store.tableDB().AutoMigrate(&row{}); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return storage.CloseGorm(s.db)
}

// UpsertUser inserts or replaces the Discord ID for a GitHub user.
func (s *Store) UpsertUser(ctx context.Context, record storage.UserRecord) error {
	if s == nil || s.db == nil {
		return storage.ErrNotInitialized
	}
	record.GitHubID = strings.TrimSpace(record.GitHubID)
	if record.GitHubID == "" {
		return errors.New("github id is required")
	}
	if record.DiscordID == "" {
		return errors.New("discord id is required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	data := toRow(record)
	return s.tableDB().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "github_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"login", "discord_id", "updated_at"}),
		}).
		Create(&data).Error
}

// DeleteUser removes a GitHub user; deleting an unknown user is not an error.
func (s *Store) DeleteUser(ctx context.Context, githubID string) error {
	if s == nil || s.db == nil {
		return storage.ErrNotInitialized
	}
	return s.tableDB().
		WithContext(ctx).
		Where("github_id = ?", githubID).
		Delete(&row{}).Error
}

// ListUsers returns every mapping ordered by GitHub ID.
func (s *Store) ListUsers(ctx context.Context) ([]storage.UserRecord, error) {
	if s == nil || s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	var data []row
	if err := s.tableDB().WithContext(ctx).Order("github_id").Find(&data).Error; err != nil {
		return nil, err
	}
	records := make([]storage.UserRecord, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record storage.UserRecord) row {
	return row{
		GitHubID:  record.GitHubID,
		Login:     record.Login,
		DiscordID: record.DiscordID,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func fromRow(data row) storage.UserRecord {
	return storage.UserRecord{
		GitHubID:  data.GitHubID,
		Login:     data.Login,
		DiscordID: data.DiscordID,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}
