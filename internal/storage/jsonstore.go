// internal/storage/jsonstore.go
//
// JSON 快照檔案後端。
// 寫入採原子策略：先寫入 .tmp 檔，再以 rename() 取代原檔，寫入中斷時原檔不會損壞。
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

// snapshotVersion 為目前的快照結構版本。
const snapshotVersion = 2

// snapshotStorage 寫入 _meta.storage 的後端名稱。
const snapshotStorage = "json_snapshot"

// JSONStore 以單一 JSON 快照檔實作 Store。
type JSONStore struct {
	path string
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore 建立以 path 為快照檔的後端。
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// SaveAll 以新快照整份取代舊檔。
func (s *JSONStore) SaveAll(_ context.Context, records []AccountRecord) error {
	return s.write(Snapshot{
		Meta: Meta{
			Storage:   snapshotStorage,
			Version:   snapshotVersion,
			Timestamp: time.Now(),
		},
		Accounts: dedupeByKey(records),
	})
}

// LoadAll 讀回快照中的紀錄；檔案尚未存在時視為空集合。
func (s *JSONStore) LoadAll(_ context.Context) ([]AccountRecord, error) {
	snap, err := s.read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []AccountRecord{}, nil
		}
		return nil, err
	}
	if snap.Accounts == nil {
		return []AccountRecord{}, nil
	}
	return snap.Accounts, nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) read() (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(s.path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	err = json.NewDecoder(f).Decode(&snap)
	return snap, err
}

// write 先寫 path+".tmp"，關檔成功後才 rename 覆蓋正式檔；失敗時移除暫存檔。
func (s *JSONStore) write(snap Snapshot) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	err = enc.Encode(snap)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}
