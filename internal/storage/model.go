// internal/storage/model.go
//
// 定義持久化層的資料結構：帳戶紀錄（AccountRecord）與 JSON 快照（Snapshot）。
// 本層只負責序列化格式，不涉入商業邏輯；金額一律以十進位字串保存，避免浮點誤差。
package storage

import "time"

// 帳戶紀錄的種類標記（type 欄位）。
const (
	TypePersonal = "personal"
	TypeCompany  = "company"
)

// Meta 為 JSON 快照的中繼資料，由 JSONStore 寫入。
type Meta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// AccountRecord 為帳戶在儲存層的扁平格式。
// Type 區分個人 / 企業；未知種類在還原時會被略過。
type AccountRecord struct {
	Type        string   `json:"type" dynamodbav:"type"`
	FirstName   string   `json:"first_name,omitempty" dynamodbav:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty" dynamodbav:"last_name,omitempty"`
	Pesel       string   `json:"pesel,omitempty" dynamodbav:"pesel,omitempty"`
	PromoCode   string   `json:"promo_code,omitempty" dynamodbav:"promo_code,omitempty"`
	CompanyName string   `json:"company_name,omitempty" dynamodbav:"company_name,omitempty"`
	Nip         string   `json:"nip,omitempty" dynamodbav:"nip,omitempty"`
	Balance     string   `json:"balance" dynamodbav:"balance"`
	History     []string `json:"history" dynamodbav:"history"`
}

// Key 回傳紀錄的識別碼：個人帳戶為 PESEL，企業帳戶為 NIP。
func (r AccountRecord) Key() string {
	if r.Type == TypeCompany {
		return r.Nip
	}
	return r.Pesel
}

// Snapshot 為 JSON 檔案後端的完整快照。
type Snapshot struct {
	Meta     Meta            `json:"_meta"`
	Accounts []AccountRecord `json:"accounts"`
}
