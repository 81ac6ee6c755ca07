// internal/bank/errors.go
//
// 本檔集中定義領域錯誤（domain errors）。
// 轉帳類操作（餘額不足、金額非法）一律「靜默拒絕」，不回傳錯誤；
// 只有建構期驗證與資料還原失敗才會以錯誤回報，由上層轉換為 HTTP 狀態碼。

package bank

import "errors"

var (
	// ErrCompanyNotRegistered 代表 NIP 未通過稅務登記查詢（不存在、狀態非 Czynny 或查詢失敗）。
	// 對應 HTTP 狀態碼 400 Bad Request。
	ErrCompanyNotRegistered = errors.New("company not registered")

	// ErrNotFound 代表帳戶不存在。
	// 對應 HTTP 狀態碼 404 Not Found。
	ErrNotFound = errors.New("account not found")

	// ErrDuplicate 代表相同識別碼的帳戶已存在。
	// 對應 HTTP 狀態碼 409 Conflict。
	ErrDuplicate = errors.New("account already exists")

	// ErrBadRecord 代表持久化紀錄無法還原（金額格式錯誤等）。
	ErrBadRecord = errors.New("malformed account record")
)
