// internal/bank/ports.go
//
// 核心對外部協作者的介面（由 taxregistry、notify 套件實作）。

package bank

import (
	"context"
	"time"
)

// TaxSubject 為稅務登記查詢回傳的主體資料。
type TaxSubject struct {
	Name      string `json:"name"`
	Nip       string `json:"nip"`
	StatusVat string `json:"statusVat"`
}

// TaxRegistry 依 NIP 與日期查詢登記主體；主體不存在時回傳 (nil, nil)。
type TaxRegistry interface {
	Lookup(ctx context.Context, nip string, date time.Time) (*TaxSubject, error)
}

// Notifier 寄送郵件並回報是否成功。
type Notifier interface {
	Send(ctx context.Context, subject, body, to string) bool
}
