// internal/server/dto.go
//
// HTTP 請求與回應的資料結構。請求金額可為數字或字串，回應中的金額一律為數字。
package server

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bankapi/internal/bank"
)

type createPersonalRequest struct {
	Name      string `json:"name" binding:"required"`
	Surname   string `json:"surname" binding:"required"`
	Pesel     string `json:"pesel" binding:"required"`
	PromoCode string `json:"promo_code"`
}

type createCompanyRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Nip         string `json:"nip" binding:"required"`
}

// updateRequest 的欄位為指標，用以區分「未提供」與「空字串」。
type updateRequest struct {
	Name        *string `json:"name"`
	Surname     *string `json:"surname"`
	CompanyName *string `json:"company_name"`
}

type transferRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
	Type   string           `json:"type"`
}

type loanRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type countResponse struct {
	Count int `json:"count"`
}

type loanResponse struct {
	Approved bool `json:"approved"`
}

type sentResponse struct {
	Sent bool `json:"sent"`
}

// accountView 為帳戶對外的 JSON 表示；依 type 只會填入對應欄位。
type accountView struct {
	Type        bank.Kind `json:"type"`
	Name        string    `json:"name,omitempty"`
	Surname     string    `json:"surname,omitempty"`
	Pesel       string    `json:"pesel,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Nip         string    `json:"nip,omitempty"`
	Balance     number    `json:"balance"`
	History     []number  `json:"history"`
}

// number 在 JSON 中輸出為數字（decimal 預設輸出為字串）；解碼數字或字串皆可。
type number struct {
	decimal.Decimal
}

func (a number) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func numbersOf(ds []decimal.Decimal) []number {
	out := make([]number, len(ds))
	for i, d := range ds {
		out[i] = number{d}
	}
	return out
}

func viewOf(a bank.Account) accountView {
	v := accountView{
		Type:    a.Kind(),
		Balance: number{a.Balance()},
		History: numbersOf(a.History()),
	}
	switch acc := a.(type) {
	case *bank.PersonalAccount:
		v.Name = acc.FirstName
		v.Surname = acc.LastName
		v.Pesel = acc.Pesel()
	case *bank.CompanyAccount:
		v.CompanyName = acc.CompanyName
		v.Nip = acc.Nip()
	}
	return v
}

func savedMessage(n int) string {
	return fmt.Sprintf("Successfully saved %d accounts to database", n)
}

func loadedMessage(n int) string {
	return fmt.Sprintf("Successfully loaded %d accounts from database", n)
}
