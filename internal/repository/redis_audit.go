package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dexgate/gateway/internal/model"
)

// RedisAuditRepo fans audit entries into a capped Redis list, giving every
// gateway replica a shared, read-through audit trail; cmd/server uses it
// in place of PostgresAuditRepo when no database DSN is configured.
type RedisAuditRepo struct {
	client  *RedisClient
	listKey string
	listMax int64
}

func NewRedisAuditRepo(client *RedisClient, listKey string, listMax int) *RedisAuditRepo {
	if listKey == "" {
		listKey = "audit_logs"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisAuditRepo{client: client, listKey: listKey, listMax: int64(listMax)}
}

func (r *RedisAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := r.client.Client.Pipeline()
	pipe.LPush(ctx, r.listKey, string(payload))
	pipe.LTrim(ctx, r.listKey, 0, r.listMax-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisAuditRepo) List(ctx context.Context, clientID string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := int64(limit * 5)
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	raws, err := r.client.Client.LRange(ctx, r.listKey, 0, fetch-1).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*model.AuditLog, 0, limit)
	for _, raw := range raws {
		var entry model.AuditLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if clientID != "" && entry.ClientID != clientID {
			continue
		}
		if from != nil && entry.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && entry.CreatedAt.After(*to) {
			continue
		}
		results = append(results, &entry)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
