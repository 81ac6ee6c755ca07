// internal/server/handler.go
//
// Package server
// ─────────────────────────────────────────────
// 提供 HTTP RESTful 介面，作為 bank 模組的應用層。
// 每個 handler 僅負責：
//  1. 接收與驗證 HTTP 請求
//  2. 在全域鎖內呼叫 bank 層執行商業邏輯
//  3. 以前後餘額比對判斷轉帳是否被拒絕
//  4. 成功變更狀態後呼叫 s.persist()
//
// bank 層本身不加鎖；所有對 Registry 的讀寫都必須經過 s.mu。
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"bankapi/internal/bank"
	"bankapi/internal/logger"
	"bankapi/internal/storage"
)

// 回應訊息
const (
	msgAccountCreated  = "Account created"
	msgAccountUpdated  = "Account updated"
	msgAccountDeleted  = "Account deleted"
	msgTransferAccept  = "Zlecenie przyjęto do realizacji"
	msgInsufficient    = "Insufficient funds"
	msgExpressUnsup    = "This account type does not support express transfers"
	msgInvalidTransfer = "Invalid transfer type. Must be one of: [incoming outgoing express]"
	msgLoanAmount      = "Loan amount must be positive"
)

var errStoreMissing = errors.New("storage backend not configured")

// Deps 為 Server 的外部協作者；皆可為 nil。
type Deps struct {
	Store  storage.Store
	Taxes  bank.TaxRegistry
	Mailer bank.Notifier
	Log    logger.Logger
}

// Server 為 HTTP 層核心結構：
//   - registry：帳戶集合，由 mu 保護。
//   - persist：成功變更後呼叫的持久化鉤子，可為 nil。
type Server struct {
	mu       sync.Mutex
	registry *bank.Registry
	persist  func() error

	store  storage.Store
	taxes  bank.TaxRegistry
	mailer bank.Notifier
	log    logger.Logger
}

// NewServer 建立新的 HTTP 伺服器。
// persist 可為 nil；若提供則會於每次成功變更後、仍持有鎖時觸發。
func NewServer(reg *bank.Registry, persist func() error, deps Deps) *Server {
	if reg == nil {
		reg = bank.NewRegistry()
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &Server{
		registry: reg,
		persist:  persist,
		store:    deps.Store,
		taxes:    deps.Taxes,
		mailer:   deps.Mailer,
		log:      deps.Log,
	}
}

// afterMutation 呼叫持久化鉤子；失敗只記錄，不影響回應。
// 呼叫端必須持有 s.mu。
func (s *Server) afterMutation(ctx context.Context) {
	if s.persist == nil {
		return
	}
	if err := s.persist(); err != nil {
		s.log.Warnf(ctx, "persist after mutation failed: %v", err)
	}
}

// lookup 取得帳戶；呼叫端必須持有 s.mu。
func (s *Server) lookup(key string) (bank.Account, error) {
	a, ok := s.registry.Get(key)
	if !ok {
		return nil, bank.ErrNotFound
	}
	return a, nil
}

// addUnique 在識別碼未被使用時加入帳戶；呼叫端必須持有 s.mu。
func (s *Server) addUnique(a bank.Account) error {
	if s.registry.Exists(a.Key()) {
		return bank.ErrDuplicate
	}
	s.registry.Add(a)
	return nil
}

// createPersonal 處理 POST /accounts。
func (s *Server) createPersonal(c *gin.Context) {
	var req createPersonalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}
	ctx := c.Request.Context()
	a := bank.NewPersonalAccount(req.Name, req.Surname, req.Pesel, req.PromoCode)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.addUnique(a); err != nil {
		writeErr(c, http.StatusConflict, "Account with PESEL "+req.Pesel+" already exists")
		return
	}
	s.log.Infof(logger.WithAccountKey(ctx, a.Key()), "personal account created")
	s.afterMutation(ctx)
	writeMessage(c, http.StatusCreated, msgAccountCreated)
}

// createCompany 處理 POST /companies。
// 稅務登記查詢為網路呼叫，在取得鎖之前完成。
func (s *Server) createCompany(c *gin.Context) {
	var req createCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}
	ctx := c.Request.Context()
	a, err := bank.NewCompanyAccount(ctx, s.taxes, req.CompanyName, req.Nip)
	if err != nil {
		s.log.Warnf(ctx, "company account rejected: %v", err)
		writeDomainErr(c, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.addUnique(a); err != nil {
		writeErr(c, http.StatusConflict, "Account with NIP "+a.Key()+" already exists")
		return
	}
	s.log.Infof(logger.WithAccountKey(ctx, a.Key()), "company account created")
	s.afterMutation(ctx)
	writeMessage(c, http.StatusCreated, msgAccountCreated)
}

// listAccounts 處理 GET /accounts。
func (s *Server) listAccounts(c *gin.Context) {
	s.mu.Lock()
	all := s.registry.All()
	views := make([]accountView, 0, len(all))
	for _, a := range all {
		views = append(views, viewOf(a))
	}
	s.mu.Unlock()
	writeJSON(c, http.StatusOK, views)
}

// countAccounts 處理 GET /accounts/count。
func (s *Server) countAccounts(c *gin.Context) {
	s.mu.Lock()
	n := s.registry.Count()
	s.mu.Unlock()
	writeJSON(c, http.StatusOK, countResponse{Count: n})
}

// getAccount 處理 GET /accounts/:key。
func (s *Server) getAccount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.lookup(c.Param("key"))
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(a))
}

// updateAccount 處理 PATCH /accounts/:key，只更新請求中有出現的欄位。
func (s *Server) updateAccount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.lookup(c.Param("key"))
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}

	switch acc := a.(type) {
	case *bank.PersonalAccount:
		if req.Name != nil {
			acc.FirstName = *req.Name
		}
		if req.Surname != nil {
			acc.LastName = *req.Surname
		}
	case *bank.CompanyAccount:
		if req.CompanyName != nil {
			acc.CompanyName = *req.CompanyName
		}
	}
	s.afterMutation(c.Request.Context())
	writeMessage(c, http.StatusOK, msgAccountUpdated)
}

// deleteAccount 處理 DELETE /accounts/:key。
func (s *Server) deleteAccount(c *gin.Context) {
	key := c.Param("key")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registry.Delete(key) {
		writeDomainErr(c, bank.ErrNotFound)
		return
	}
	ctx := c.Request.Context()
	s.log.Infof(logger.WithAccountKey(ctx, key), "account deleted")
	s.afterMutation(ctx)
	writeMessage(c, http.StatusOK, msgAccountDeleted)
}

// health 提供健康檢查端點：GET /health。
func (s *Server) health(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
