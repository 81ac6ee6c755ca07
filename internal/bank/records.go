// internal/bank/records.go
//
// 帳戶與持久化紀錄（storage.AccountRecord）之間的轉換。
// 還原時直接回填狀態，不會重新套用促銷或稅務登記驗證。

package bank

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bankapi/internal/storage"
)

// ToRecords 依序將帳戶轉為持久化紀錄。
func ToRecords(accounts []Account) []storage.AccountRecord {
	out := make([]storage.AccountRecord, 0, len(accounts))
	for _, a := range accounts {
		rec := storage.AccountRecord{
			Balance: a.Balance().String(),
			History: decimalsToStrings(a.History()),
		}
		switch acc := a.(type) {
		case *PersonalAccount:
			rec.Type = storage.TypePersonal
			rec.FirstName = acc.FirstName
			rec.LastName = acc.LastName
			rec.Pesel = acc.pesel
			rec.PromoCode = acc.promoCode
		case *CompanyAccount:
			rec.Type = storage.TypeCompany
			rec.CompanyName = acc.CompanyName
			rec.Nip = acc.nip
		default:
			continue
		}
		out = append(out, rec)
	}
	return out
}

// FromRecords 依紀錄重建帳戶；未知 type 的紀錄會被略過（非錯誤）。
// 金額字串無法解析時回傳 ErrBadRecord。
func FromRecords(records []storage.AccountRecord) ([]Account, error) {
	out := make([]Account, 0, len(records))
	for _, rec := range records {
		ledger, err := restoreLedger(rec)
		if err != nil {
			return nil, err
		}
		switch rec.Type {
		case storage.TypePersonal:
			out = append(out, &PersonalAccount{
				Ledger:    ledger,
				FirstName: rec.FirstName,
				LastName:  rec.LastName,
				pesel:     rec.Pesel,
				promoCode: rec.PromoCode,
			})
		case storage.TypeCompany:
			out = append(out, &CompanyAccount{
				Ledger:      ledger,
				CompanyName: rec.CompanyName,
				nip:         rec.Nip,
			})
		}
	}
	return out, nil
}

func restoreLedger(rec storage.AccountRecord) (Ledger, error) {
	if rec.Type != storage.TypePersonal && rec.Type != storage.TypeCompany {
		return Ledger{}, nil
	}
	balance := decimal.Zero
	if rec.Balance != "" {
		b, err := decimal.NewFromString(rec.Balance)
		if err != nil {
			return Ledger{}, fmt.Errorf("%w: %s balance %q: %v", ErrBadRecord, rec.Key(), rec.Balance, err)
		}
		balance = b
	}
	history := make([]decimal.Decimal, 0, len(rec.History))
	for _, h := range rec.History {
		d, err := decimal.NewFromString(h)
		if err != nil {
			return Ledger{}, fmt.Errorf("%w: %s history %q: %v", ErrBadRecord, rec.Key(), h, err)
		}
		history = append(history, d)
	}
	return Ledger{balance: balance, history: history}, nil
}

func decimalsToStrings(ds []decimal.Decimal) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
