// Package profile looks up member profiles stored in MySQL.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var (
	ErrNotFound = errors.New("profile not found")
	ErrDisabled = errors.New("profile lookup is not configured")
)

type Profile struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"size:64;uniqueIndex"`
	DisplayName   string `gorm:"size:128"`
	Bio           string `gorm:"type:text"`
	FavoriteTrack string `gorm:"size:255"`
	UpdatedAt     time.Time
}

func (Profile) TableName() string { return "profiles" }

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to MySQL using dsn. An empty dsn yields a disabled repository.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		logger.Info("Profile lookup disabled, MYSQL_DSN is not set")
		return &Repository{logger: logger}, nil
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	logger.Info("MySQL connected")
	return NewRepository(db, logger), nil
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Enabled() bool {
	return r != nil && r.db != nil
}

// FindByName returns the profile whose name matches, ignoring case.
func (r *Repository) FindByName(ctx context.Context, name string) (*Profile, error) {
	if !r.Enabled() {
		return nil, ErrDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}

	var p Profile
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}
	return &p, nil
}

func (r *Repository) Close() error {
	if !r.Enabled() {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
