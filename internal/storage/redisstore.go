// internal/storage/redisstore.go
//
// Redis 儲存後端。
// 帳戶以 JSON 文件存放在 hash <prefix>accounts（field 為識別碼），
// 寫入順序另存於 list <prefix>order；兩者在同一個 MULTI/EXEC 中整份取代。
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore 以 Redis hash + list 實作 Store。
type RedisStore struct {
	rdb      *redis.Client
	hashKey  string
	orderKey string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 以既有 client 建立後端，prefix 用於區隔不同環境的鍵。
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		rdb:      rdb,
		hashKey:  prefix + "accounts",
		orderKey: prefix + "order",
	}
}

// OpenRedisStore 建立連線並以 PING 確認可用。
func OpenRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(rdb, prefix), nil
}

// SaveAll 在一個 transaction pipeline 中刪除舊資料並寫入新快照。
func (s *RedisStore) SaveAll(ctx context.Context, records []AccountRecord) error {
	records = dedupeByKey(records)

	fields := make([]interface{}, 0, len(records)*2)
	order := make([]interface{}, 0, len(records))
	for _, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal account %s: %w", rec.Key(), err)
		}
		fields = append(fields, rec.Key(), doc)
		order = append(order, rec.Key())
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.hashKey, s.orderKey)
		if len(records) > 0 {
			pipe.HSet(ctx, s.hashKey, fields...)
			pipe.RPush(ctx, s.orderKey, order...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save accounts: %w", err)
	}
	return nil
}

// LoadAll 依 order list 的順序讀回帳戶；list 中存在但 hash 缺少的識別碼會被略過。
func (s *RedisStore) LoadAll(ctx context.Context) ([]AccountRecord, error) {
	keys, err := s.rdb.LRange(ctx, s.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read account order: %w", err)
	}
	records := make([]AccountRecord, 0, len(keys))
	if len(keys) == 0 {
		return records, nil
	}

	docs, err := s.rdb.HMGet(ctx, s.hashKey, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	for i, doc := range docs {
		raw, ok := doc.(string)
		if !ok {
			continue
		}
		var rec AccountRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal account %s: %w", keys[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close 關閉 Redis 連線。
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
