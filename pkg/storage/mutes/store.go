package mutes

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ghbridge/pkg/storage"

	"gorm.io/gorm"
)

// Store implements storage.MuteStore on top of GORM. Each row mutes one
// event for one user; a NULL actions column mutes every action.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	GitHubID  string    `gorm:"column:github_id;size:64;not null;index"`
	Mode      string    `gorm:"column:mode;size:16;not null"`
	Event     string    `gorm:"column:event;size:64"`
	Actions   *string   `gorm:"column:actions;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Open creates a GORM-backed mute list store.
func Open(cfg storage.Config) (*Store, error) {
	db, err := storage.OpenGorm(cfg)
	if err != nil {
		return nil, err
	}
	return New(db, cfg.Table, cfg.AutoMigrate)
}

func New(db *gorm.DB, table string, autoMigrate bool) (*Store, error) {
	if table == "" {
		table = "ghbridge_mutes"
	}
	store := &Store{db: db, table: table}
	if autoMigrate {
		if err := store.tableDB().AutoMigrate(&row{}); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return storage.CloseGorm(s.db)
}

// ReplaceMutes swaps every row of a user for records in one transaction.
// An empty records slice unmutes the user.
func (s *Store) ReplaceMutes(ctx context.Context, githubID string, records []storage.MuteRecord) error {
	if s == nil || s.db == nil {
		return storage.ErrNotInitialized
	}
	if githubID == "" {
		return errors.New("github id is required")
	}
	now := time.Now().UTC()
	data := make([]row, 0, len(records))
	for _, record := range records {
		record.GitHubID = githubID
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now
		item, err := toRow(record)
		if err != nil {
			return err
		}
		data = append(data, item)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.table).Where("github_id = ?", githubID).Delete(&row{}).Error; err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		return tx.Table(s.table).Create(&data).Error
	})
}

// ListMutes returns every row grouped by user in insertion order.
func (s *Store) ListMutes(ctx context.Context) ([]storage.MuteRecord, error) {
	if s == nil || s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	var data []row
	if err := s.tableDB().WithContext(ctx).Order("github_id, id").Find(&data).Error; err != nil {
		return nil, err
	}
	records := make([]storage.MuteRecord, 0, len(data))
	for _, item := range data {
		record, err := fromRow(item)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record storage.MuteRecord) (row, error) {
	data := row{
		GitHubID:  record.GitHubID,
		Mode:      record.Mode,
		Event:     record.Event,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if record.Actions != nil {
		encoded, err := json.Marshal(record.Actions)
		if err != nil {
			return data, err
		}
		actions := string(encoded)
		data.Actions = &actions
	}
	return data, nil
}

func fromRow(data row) (storage.MuteRecord, error) {
	record := storage.MuteRecord{
		GitHubID:  data.GitHubID,
		Mode:      data.Mode,
		Event:     data.Event,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
	if data.Actions != nil {
		record.Actions = []string{}
		if err := json.Unmarshal([]byte(*data.Actions), &record.Actions); err != nil {
			return record, err
		}
	}
	return record, nil
}
