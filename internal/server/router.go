// internal/server/router.go
//
// 本檔負責 HTTP 路由註冊，與 handler 分離：
//   - handler.go / transfer.go 定義「如何處理請求」
//   - router.go 定義「請求如何被導向」
//   - cmd/server 組裝整體應用（注入 Registry、Store、Persist Hook）
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router 建立並回傳整個 HTTP 處理鏈。
// 所有業務端點掛在 /api 之下；/health 同時保留在根路徑供探針使用。
func (s *Server) Router() http.Handler {
	r := gin.New()
	r.Use(requestID())
	r.Use(accessLog(s.log))
	r.Use(recovery(s.log))

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/health", s.health)

		accounts := api.Group("/accounts")
		{
			accounts.POST("", s.createPersonal)
			accounts.GET("", s.listAccounts)
			accounts.GET("/count", s.countAccounts)

			// 持久化
			accounts.POST("/save", s.save)
			accounts.POST("/load", s.load)

			accounts.GET("/:key", s.getAccount)
			accounts.PATCH("/:key", s.updateAccount)
			accounts.DELETE("/:key", s.deleteAccount)
			accounts.POST("/:key/transfer", s.transfer)
			accounts.POST("/:key/loan", s.loan)
			accounts.POST("/:key/history/email", s.emailHistory)
		}

		api.POST("/companies", s.createCompany)
	}

	return r
}
