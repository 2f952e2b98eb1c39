package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dexgate/gateway/internal/config"
	"github.com/dexgate/gateway/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var ErrClientNotFound = errors.New("client not found")

type DB struct {
	Client *gorm.DB
}

func NewDB(cfg *config.Config) (*DB, error) {
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Client{}, &model.AuditLog{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return &DB{Client: db}, nil
}

// PostgresClientRepo is the durable store of client records (API keys,
// signer credentials, risk/rate configuration) per A.6.
type PostgresClientRepo struct {
	db *DB
}

func NewPostgresClientRepo(db *DB) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

func (r *PostgresClientRepo) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	var c model.Client
	err := r.db.Client.WithContext(ctx).Where("api_key = ?", apiKey).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresClientRepo) GetByID(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	err := r.db.Client.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresClientRepo) List(ctx context.Context, limit, offset int) ([]*model.Client, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var clients []*model.Client
	err := r.db.Client.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(offset).Find(&clients).Error
	return clients, err
}

func (r *PostgresClientRepo) Create(ctx context.Context, c *model.Client) error {
	return r.db.Client.WithContext(ctx).Create(c).Error
}

func (r *PostgresClientRepo) Update(ctx context.Context, c *model.Client) error {
	return r.db.Client.WithContext(ctx).Save(c).Error
}

func (r *PostgresClientRepo) Delete(ctx context.Context, id string) error {
	return r.db.Client.WithContext(ctx).Where("id = ?", id).Delete(&model.Client{}).Error
}

// PostgresAuditRepo is the durable audit sink (A.7); every mutating request
// is appended here by the audit middleware regardless of outcome.
type PostgresAuditRepo struct {
	db *DB
}

func NewPostgresAuditRepo(db *DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	return r.db.Client.WithContext(ctx).Create(entry).Error
}

func (r *PostgresAuditRepo) List(ctx context.Context, clientID string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	tx := r.db.Client.WithContext(ctx)
	if clientID != "" {
		tx = tx.Where("client_id = ?", clientID)
	}
	if from != nil {
		tx = tx.Where("created_at >= ?", from)
	}
	if to != nil {
		tx = tx.Where("created_at <= ?", to)
	}

	var logs []*model.AuditLog
	err := tx.Order("created_at desc").Limit(limit).Find(&logs).Error
	return logs, err
}

func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.Client.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.AuditLog{}).Error
}
