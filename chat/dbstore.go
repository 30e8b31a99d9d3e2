// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SessionRecord is the database model backing DatabaseStore.
type SessionRecord struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName implements the GORM table-name convention.
func (SessionRecord) TableName() string { return "chat_sessions" }

// DatabaseStore is a Store backed by a relational database via GORM, for
// callers that want session state to survive process restarts.
type DatabaseStore struct {
	db          *gorm.DB
	tableName   string
	createTable bool
}

var _ Store = (*DatabaseStore)(nil)

// DatabaseStoreConfig holds configuration for DatabaseStore.
type DatabaseStoreConfig struct {
	DB          *gorm.DB
	TableName   string // Optional, defaults to "chat_sessions"
	CreateTable bool   // Whether to create the table if it doesn't exist
}

// NewDatabaseStore creates a DatabaseStore.
func NewDatabaseStore(config DatabaseStoreConfig) (*DatabaseStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	tableName := config.TableName
	if tableName == "" {
		tableName = "chat_sessions"
	}

	return &DatabaseStore{
		db:          config.DB,
		tableName:   tableName,
		createTable: config.CreateTable,
	}, nil
}

// Initialize prepares the database for use.
func (s *DatabaseStore) Initialize(ctx context.Context) error {
	if !s.createTable {
		return nil
	}
	if err := s.db.WithContext(ctx).Table(s.tableName).AutoMigrate(&SessionRecord{}); err != nil {
		return fmt.Errorf("initialize session store: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *DatabaseStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key cannot be empty")
	}

	var record SessionRecord
	err := s.db.WithContext(ctx).Table(s.tableName).Where("key = ?", key).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get session key %q: %w", key, err)
	}
	return record.Value, true, nil
}

// Set implements Store.
func (s *DatabaseStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	record := SessionRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Table(s.tableName).Save(&record).Error; err != nil {
		return fmt.Errorf("set session key %q: %w", key, err)
	}
	return nil
}

// Remove implements Store.
func (s *DatabaseStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if err := s.db.WithContext(ctx).Table(s.tableName).Where("key = ?", key).Delete(&SessionRecord{}).Error; err != nil {
		return fmt.Errorf("remove session key %q: %w", key, err)
	}
	return nil
}
