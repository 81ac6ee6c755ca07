// internal/bank/personal.go

package bank

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	peselLength = 11
	promoPrefix = "PROM_"
	// promoAgeGateYear 以下（含）且月份合法的 PESEL 不適用促銷。
	promoAgeGateYear = 60

	personalLoanStreak  = 3
	personalLoanSumSpan = 5
)

var (
	promoBonus         = decimal.NewFromInt(50)
	personalExpressFee = decimal.NewFromInt(1)
)

// PersonalAccount 個人帳戶，以 PESEL 為識別碼。
type PersonalAccount struct {
	Ledger
	FirstName string
	LastName  string
	pesel     string
	promoCode string
}

var _ Account = (*PersonalAccount)(nil)

// NewPersonalAccount 建立個人帳戶並於建立時套用一次促銷規則。
// PESEL 長度不為 11 時以 InvalidID 取代。
func NewPersonalAccount(firstName, lastName, pesel, promoCode string) *PersonalAccount {
	a := &PersonalAccount{
		FirstName: firstName,
		LastName:  lastName,
		pesel:     pesel,
		promoCode: promoCode,
	}
	if utf8.RuneCountInString(pesel) != peselLength {
		a.pesel = InvalidID
	}
	a.applyPromo()
	return a
}

// applyPromo：PESEL 有效、出生年月未落在「年 <= 60 且月份 1–12」區間、
// 且促銷碼以 PROM_ 開頭時，餘額加 50。
func (a *PersonalAccount) applyPromo() {
	if a.pesel == InvalidID {
		return
	}
	yy, errY := strconv.Atoi(a.pesel[0:2])
	mm, errM := strconv.Atoi(a.pesel[2:4])
	if errY != nil || errM != nil {
		return
	}
	if yy <= promoAgeGateYear && mm >= 1 && mm <= 12 {
		return
	}
	if strings.HasPrefix(a.promoCode, promoPrefix) {
		a.balance = a.balance.Add(promoBonus)
	}
}

func (a *PersonalAccount) Key() string   { return a.pesel }
func (a *PersonalAccount) Kind() Kind    { return KindPersonal }
func (a *PersonalAccount) Pesel() string { return a.pesel }

// PromoCode 回傳建立時提供的促銷碼（可能為空）。
func (a *PersonalAccount) PromoCode() string { return a.promoCode }

// ExpressOutgoing 快速轉帳，手續費 1。
// 金額與手續費分別以一般出帳記錄，歷史會新增兩筆。
func (a *PersonalAccount) ExpressOutgoing(amount decimal.Decimal) {
	if amount.Sign() <= 0 || amount.Add(personalExpressFee).GreaterThan(a.balance) {
		return
	}
	a.OutgoingTransfer(amount)
	a.OutgoingTransfer(personalExpressFee)
}

// SubmitForLoan 申請貸款：最近三筆皆為入帳，或最近五筆總和大於 amount 即核准。
// 核准時餘額增加 amount 並回傳 true；否則不變並回傳 false。
func (a *PersonalAccount) SubmitForLoan(amount decimal.Decimal) bool {
	if !a.lastAllIncoming(personalLoanStreak) && !a.lastSumExceeds(personalLoanSumSpan, amount) {
		return false
	}
	a.balance = a.balance.Add(amount)
	return true
}

func (a *PersonalAccount) lastAllIncoming(n int) bool {
	if len(a.history) < n {
		return false
	}
	for _, h := range a.history[len(a.history)-n:] {
		if h.Sign() <= 0 {
			return false
		}
	}
	return true
}

func (a *PersonalAccount) lastSumExceeds(n int, amount decimal.Decimal) bool {
	if len(a.history) < n {
		return false
	}
	sum := decimal.Zero
	for _, h := range a.history[len(a.history)-n:] {
		sum = sum.Add(h)
	}
	return sum.GreaterThan(amount)
}

// SendHistoryViaEmail 將交易歷史寄至 address。
func (a *PersonalAccount) SendHistoryViaEmail(ctx context.Context, n Notifier, address string) bool {
	return a.sendHistory(ctx, n, "Personal account history: ", address)
}
