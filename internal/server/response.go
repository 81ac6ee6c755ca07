// internal/server/response.go
//
// 本檔負責統一 HTTP 回應格式：
//   - 成功訊息：{"message": "..."}
//   - 錯誤：{"error": "..."}，驗證失敗時另附 details
//
// 所有 handler 都應透過這些函式回應，以維持一致格式。
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"bankapi/internal/bank"
)

// ErrorDetail 為單一欄位的驗證錯誤。
type ErrorDetail struct {
	Path string `json:"path"`
	Info string `json:"info"`
}

type errorBody struct {
	Error   string        `json:"error"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

// writeJSON 輸出任意成功回應。
func writeJSON(c *gin.Context, code int, v any) {
	c.JSON(code, v)
}

// writeMessage 輸出 {"message": msg}。
func writeMessage(c *gin.Context, code int, msg string) {
	c.JSON(code, messageBody{Message: msg})
}

// writeErr 輸出 {"error": msg}。
func writeErr(c *gin.Context, code int, msg string) {
	c.JSON(code, errorBody{Error: msg})
}

// writeDomainErr 依領域錯誤決定狀態碼。
func writeDomainErr(c *gin.Context, err error) {
	writeErr(c, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bank.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bank.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, bank.ErrCompanyNotRegistered):
		return http.StatusBadRequest
	case errors.Is(err, errStoreMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeBindErr 將 ShouldBindJSON 的錯誤轉為 400；驗證錯誤逐欄列出。
func writeBindErr(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]ErrorDetail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, ErrorDetail{
				Path: fe.Field(),
				Info: validationMessage(fe),
			})
		}
		c.JSON(http.StatusBadRequest, errorBody{Error: "Validation failed", Details: details})
		return
	}
	writeErr(c, http.StatusBadRequest, err.Error())
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
