// Package store persists named configuration payloads (spec.md §4.9's stored
// configurations) across restarts. Frames in flight are never durable — only
// the configuration JSON blob that a client can replay by name survives a
// crash. Grounded structurally on the CRUD-repository shape of
// warpcomdev-asicamera2's backend.Server resource wrappers, adapted from
// HTTP resource upsert to a gorm-backed local table.
package store

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// storedConfig is the gorm model backing one named configuration.
type storedConfig struct {
	Name      string `gorm:"primaryKey"`
	Payload   []byte
	UpdatedAt time.Time
}

// Store is a sqlite-backed repository of named configuration payloads.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) a sqlite database at path and migrates the
// stored-configuration table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, odinerr.Wrap("store.Open", "store", err)
	}
	if err := db.AutoMigrate(&storedConfig{}); err != nil {
		return nil, odinerr.Wrap("store.Open", "store", err)
	}
	return &Store{db: db}, nil
}

// SaveConfig upserts payload under name.
func (s *Store) SaveConfig(name string, payload []byte) error {
	rec := storedConfig{Name: name, Payload: payload, UpdatedAt: time.Now()}
	err := s.db.Save(&rec).Error
	if err != nil {
		return odinerr.Wrap("store.SaveConfig", "store", err)
	}
	return nil
}

// LoadConfig returns the payload saved under name, or a ConfigError if no
// such configuration exists.
func (s *Store) LoadConfig(name string) ([]byte, error) {
	var rec storedConfig
	err := s.db.First(&rec, "name = ?", name).Error
	if err != nil {
		return nil, odinerr.New("store.LoadConfig", "store", odinerr.CodeConfigError, "no stored configuration named "+name)
	}
	return rec.Payload, nil
}

// ListConfigs returns the names of every stored configuration.
func (s *Store) ListConfigs() ([]string, error) {
	var recs []storedConfig
	if err := s.db.Select("name").Find(&recs).Error; err != nil {
		return nil, odinerr.Wrap("store.ListConfigs", "store", err)
	}
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Name)
	}
	return names, nil
}

// DeleteConfig removes the stored configuration named name, if present.
func (s *Store) DeleteConfig(name string) error {
	if err := s.db.Delete(&storedConfig{}, "name = ?", name).Error; err != nil {
		return odinerr.Wrap("store.DeleteConfig", "store", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return odinerr.Wrap("store.Close", "store", err)
	}
	return sqlDB.Close()
}
