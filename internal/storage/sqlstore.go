// internal/storage/sqlstore.go
//
// MySQL 儲存後端（gorm）。
// 每個帳戶一列，history 以 JSON 欄位保存；seq 保存寫入順序。
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// accountRow 為 accounts 資料表的 PO。
type accountRow struct {
	AccountKey  string         `gorm:"column:account_key;primaryKey;type:varchar(32)"`
	Seq         int            `gorm:"column:seq;not null;index:idx_seq"`
	Type        string         `gorm:"column:type;type:varchar(16);not null"`
	FirstName   string         `gorm:"column:first_name;type:varchar(128)"`
	LastName    string         `gorm:"column:last_name;type:varchar(128)"`
	Pesel       string         `gorm:"column:pesel;type:varchar(32)"`
	PromoCode   string         `gorm:"column:promo_code;type:varchar(64)"`
	CompanyName string         `gorm:"column:company_name;type:varchar(255)"`
	Nip         string         `gorm:"column:nip;type:varchar(32)"`
	Balance     string         `gorm:"column:balance;type:varchar(64);not null"`
	History     datatypes.JSON `gorm:"column:history;type:json"`
}

// TableName 指定表名
func (accountRow) TableName() string {
	return "accounts"
}

func toRow(seq int, rec AccountRecord) (accountRow, error) {
	history := rec.History
	if history == nil {
		history = []string{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return accountRow{}, err
	}
	return accountRow{
		AccountKey:  rec.Key(),
		Seq:         seq,
		Type:        rec.Type,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		Pesel:       rec.Pesel,
		PromoCode:   rec.PromoCode,
		CompanyName: rec.CompanyName,
		Nip:         rec.Nip,
		Balance:     rec.Balance,
		History:     datatypes.JSON(raw),
	}, nil
}

func fromRow(row accountRow) (AccountRecord, error) {
	rec := AccountRecord{
		Type:        row.Type,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		Pesel:       row.Pesel,
		PromoCode:   row.PromoCode,
		CompanyName: row.CompanyName,
		Nip:         row.Nip,
		Balance:     row.Balance,
	}
	if len(row.History) > 0 {
		if err := json.Unmarshal(row.History, &rec.History); err != nil {
			return AccountRecord{}, err
		}
	}
	return rec, nil
}

// SQLStore 以關聯式資料表實作 Store。
type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore 以既有連線建立後端。
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenSQLStore 連線 MySQL 並自動建立 accounts 表。
func OpenSQLStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&accountRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate accounts table: %w", err)
	}
	return NewSQLStore(db), nil
}

// SaveAll 在單一交易中清空資料表並批次寫入。
func (s *SQLStore) SaveAll(ctx context.Context, records []AccountRecord) error {
	records = dedupeByKey(records)
	rows := make([]accountRow, 0, len(records))
	for i, rec := range records {
		row, err := toRow(i, rec)
		if err != nil {
			return fmt.Errorf("marshal account %s: %w", rec.Key(), err)
		}
		rows = append(rows, row)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&accountRow{}).Error; err != nil {
			return fmt.Errorf("clear accounts: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("insert accounts: %w", err)
		}
		return nil
	})
}

// LoadAll 依 seq 讀回所有帳戶。
func (s *SQLStore) LoadAll(ctx context.Context) ([]AccountRecord, error) {
	var rows []accountRow
	if err := s.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	records := make([]AccountRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("unmarshal account %s: %w", row.AccountKey, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close 關閉底層連線池。
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
