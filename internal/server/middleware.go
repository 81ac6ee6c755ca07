// internal/server/middleware.go
//
// gin 中介層：請求追蹤碼、存取日誌、panic 復原。
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bankapi/internal/logger"
)

// RequestIDHeader 為請求追蹤碼的標頭；未帶入時自動產生 UUID。
const RequestIDHeader = "X-Request-ID"

// requestID 將追蹤碼寫入回應標頭與 request context。
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog 每個請求結束後記錄一行。
func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infof(c.Request.Context(), "%s %s %d %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// recovery 攔截 panic，記錄後回傳 500。
func recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorf(c.Request.Context(), "panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
	})
}
