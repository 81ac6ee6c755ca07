// Package bank 定義核心領域模型與業務規則。
// 本檔定義 Ledger（餘額 + 交易歷史）與兩種帳戶共用的 Account 能力集合，
// 不含任何 HTTP 或儲存細節。

package bank

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvalidID 為 PESEL / NIP 長度不符時寫入欄位的哨兵值。
const InvalidID = "Invalid"

// historyDateLayout 為歷史郵件主旨中的日期格式（YYYY-MM-DD）。
const historyDateLayout = "2006-01-02"

// nowFunc 可於測試中替換，用於郵件主旨與稅務查詢日期。
var nowFunc = time.Now

// Kind 為帳戶種類標記，同時作為持久化紀錄的 type 欄位。
type Kind string

const (
	KindPersonal Kind = "personal"
	KindCompany  Kind = "company"
)

// Account 為個人與企業帳戶共用的能力集合。
type Account interface {
	Key() string
	Kind() Kind
	Balance() decimal.Decimal
	History() []decimal.Decimal
	IncomingTransfer(amount decimal.Decimal)
	OutgoingTransfer(amount decimal.Decimal)
	SendHistoryViaEmail(ctx context.Context, n Notifier, address string) bool
}

// Ledger 保存餘額與依時間排序的交易歷史。
// history 只允許追加；每筆為套用到餘額上的帶號差額（正 = 入帳，負 = 出帳）。
type Ledger struct {
	balance decimal.Decimal
	history []decimal.Decimal
}

// Balance 回傳目前餘額。
func (l *Ledger) Balance() decimal.Decimal {
	return l.balance
}

// History 回傳交易歷史的拷貝，避免外部改寫內部切片。
func (l *Ledger) History() []decimal.Decimal {
	out := make([]decimal.Decimal, len(l.history))
	copy(out, l.history)
	return out
}

// OutgoingTransfer 出帳：amount <= 0 或超過餘額時不做任何事（靜默拒絕）。
// 呼叫端需比對前後餘額判斷是否成功。
func (l *Ledger) OutgoingTransfer(amount decimal.Decimal) {
	if amount.Sign() <= 0 || amount.GreaterThan(l.balance) {
		return
	}
	l.balance = l.balance.Sub(amount)
	l.history = append(l.history, amount.Neg())
}

// IncomingTransfer 入帳：amount <= 0 時不做任何事。
func (l *Ledger) IncomingTransfer(amount decimal.Decimal) {
	if amount.Sign() <= 0 {
		return
	}
	l.balance = l.balance.Add(amount)
	l.history = append(l.history, amount)
}

// historyBody 將歷史格式化為 "<label>[a, b, c]"。
func (l *Ledger) historyBody(label string) string {
	parts := make([]string, len(l.history))
	for i, h := range l.history {
		parts[i] = h.String()
	}
	return label + "[" + strings.Join(parts, ", ") + "]"
}

// sendHistory 組合主旨與內文後交給 Notifier，原樣回傳其結果。
func (l *Ledger) sendHistory(ctx context.Context, n Notifier, label, address string) bool {
	if n == nil {
		return false
	}
	subject := "Account Transfer History " + nowFunc().Format(historyDateLayout)
	return n.Send(ctx, subject, l.historyBody(label), address)
}
