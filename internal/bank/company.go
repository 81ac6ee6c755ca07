// internal/bank/company.go

package bank

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	nipLength = 10

	// ActiveVATStatus 為稅務登記查詢中「有效登記」的狀態文字。
	ActiveVATStatus = "Czynny"
)

var (
	companyExpressFee = decimal.NewFromInt(5)

	// ZUSPaymentMarker 為社會保險（ZUS）繳款金額；歷史中須有此筆出帳才可貸款。
	ZUSPaymentMarker = decimal.NewFromInt(-1775)
)

// CompanyAccount 企業帳戶，以 NIP 為識別碼。
type CompanyAccount struct {
	Ledger
	CompanyName string
	nip         string
}

var _ Account = (*CompanyAccount)(nil)

// NewCompanyAccount 建立企業帳戶。
// NIP 為 10 碼時必須通過稅務登記查詢，否則回傳 ErrCompanyNotRegistered 且不建立帳戶；
// 長度不符時以 InvalidID 取代並略過查詢。
func NewCompanyAccount(ctx context.Context, reg TaxRegistry, companyName, nip string) (*CompanyAccount, error) {
	if utf8.RuneCountInString(nip) != nipLength {
		return &CompanyAccount{CompanyName: companyName, nip: InvalidID}, nil
	}
	if err := verifyRegistration(ctx, reg, nip); err != nil {
		return nil, err
	}
	return &CompanyAccount{CompanyName: companyName, nip: nip}, nil
}

// verifyRegistration 查詢一次（不重試）；任何失敗都視為未登記。
func verifyRegistration(ctx context.Context, reg TaxRegistry, nip string) error {
	if reg == nil {
		return fmt.Errorf("%w: no tax registry configured", ErrCompanyNotRegistered)
	}
	subject, err := reg.Lookup(ctx, nip, nowFunc())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompanyNotRegistered, err)
	}
	if subject == nil {
		return fmt.Errorf("%w: nip %s not found", ErrCompanyNotRegistered, nip)
	}
	if subject.StatusVat != ActiveVATStatus {
		return fmt.Errorf("%w: nip %s status %q", ErrCompanyNotRegistered, nip, subject.StatusVat)
	}
	return nil
}

func (a *CompanyAccount) Key() string { return a.nip }
func (a *CompanyAccount) Kind() Kind  { return KindCompany }
func (a *CompanyAccount) Nip() string { return a.nip }

// ExpressOutgoing 快速轉帳，手續費 5，需 0 < amount <= balance。
// 金額與手續費一次扣除（餘額最多可降至 -5），且不寫入交易歷史（與個人帳戶不同）。
func (a *CompanyAccount) ExpressOutgoing(amount decimal.Decimal) {
	if amount.Sign() <= 0 || amount.GreaterThan(a.balance) {
		return
	}
	a.balance = a.balance.Sub(amount.Add(companyExpressFee))
}

// TakeLoan 申請貸款：餘額至少為 amount 的兩倍，且歷史中任一筆恰為 -1775。
func (a *CompanyAccount) TakeLoan(amount decimal.Decimal) bool {
	if a.balance.LessThan(amount.Mul(decimal.NewFromInt(2))) || !a.hasZUSPayment() {
		return false
	}
	a.balance = a.balance.Add(amount)
	return true
}

func (a *CompanyAccount) hasZUSPayment() bool {
	for _, h := range a.history {
		if h.Equal(ZUSPaymentMarker) {
			return true
		}
	}
	return false
}

// SendHistoryViaEmail 將交易歷史寄至 address。
func (a *CompanyAccount) SendHistoryViaEmail(ctx context.Context, n Notifier, address string) bool {
	return a.sendHistory(ctx, n, "Company account history: ", address)
}
