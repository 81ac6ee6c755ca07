// internal/storage/store.go
//
// Store 為所有持久化後端共用的介面。
// SaveAll 採「先清空、再全部寫入」語意；LoadAll 依寫入順序回傳紀錄。
package storage

import (
	"context"
	"errors"
)

// ErrUnknownBackend 代表設定中的儲存後端名稱不受支援。
var ErrUnknownBackend = errors.New("unknown storage backend")

// 支援的後端名稱（對應設定 storage.backend）。
const (
	BackendJSON     = "json"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendMySQL    = "mysql"
)

// Store 為帳戶快照的持久化介面。
type Store interface {
	SaveAll(ctx context.Context, records []AccountRecord) error
	LoadAll(ctx context.Context) ([]AccountRecord, error)
	Close() error
}

// dedupeByKey 以識別碼去重：保留第一次出現的位置、採用最後一次的內容（等同 upsert）。
func dedupeByKey(records []AccountRecord) []AccountRecord {
	idx := make(map[string]int, len(records))
	out := make([]AccountRecord, 0, len(records))
	for _, r := range records {
		if i, ok := idx[r.Key()]; ok {
			out[i] = r
			continue
		}
		idx[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}
