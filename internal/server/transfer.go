// internal/server/transfer.go
//
// 轉帳、貸款與歷史郵件端點。
// bank 層對不合法的轉帳一律靜默忽略，這裡以前後餘額比對判斷是否被拒絕。
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"bankapi/internal/bank"
	"bankapi/internal/logger"
)

// 轉帳種類
const (
	transferIncoming = "incoming"
	transferOutgoing = "outgoing"
	transferExpress  = "express"
)

// transfer 處理 POST /accounts/:key/transfer。
//   - incoming：一律 200
//   - outgoing / express：餘額未變動 → 422
//   - express 對不支援的帳戶種類 → 400
func (s *Server) transfer(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Param("key")
	a, err := s.lookup(key)
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}
	ctx := logger.WithAccountKey(c.Request.Context(), key)
	amount := *req.Amount

	switch req.Type {
	case transferIncoming:
		a.IncomingTransfer(amount)
	case transferOutgoing:
		if !changed(a, func() { a.OutgoingTransfer(amount) }) {
			s.log.Debugf(ctx, "outgoing transfer of %s rejected", amount)
			writeErr(c, http.StatusUnprocessableEntity, msgInsufficient)
			return
		}
	case transferExpress:
		p, ok := s.registry.Personal(key)
		if !ok {
			writeErr(c, http.StatusBadRequest, msgExpressUnsup)
			return
		}
		if !changed(a, func() { p.ExpressOutgoing(amount) }) {
			s.log.Debugf(ctx, "express transfer of %s rejected", amount)
			writeErr(c, http.StatusUnprocessableEntity, msgInsufficient)
			return
		}
	default:
		writeErr(c, http.StatusBadRequest, msgInvalidTransfer)
		return
	}

	s.afterMutation(ctx)
	writeMessage(c, http.StatusOK, msgTransferAccept)
}

// changed 執行 op 並回報餘額是否因此改變。
func changed(a bank.Account, op func()) bool {
	before := a.Balance()
	op()
	return !a.Balance().Equal(before)
}

// loan 處理 POST /accounts/:key/loan。
// 個人帳戶走 SubmitForLoan，企業帳戶走 TakeLoan。
func (s *Server) loan(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Param("key")
	if _, err := s.lookup(key); err != nil {
		writeDomainErr(c, err)
		return
	}
	var req loanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}
	if req.Amount.Sign() <= 0 {
		writeErr(c, http.StatusBadRequest, msgLoanAmount)
		return
	}

	var approved bool
	if p, ok := s.registry.Personal(key); ok {
		approved = p.SubmitForLoan(*req.Amount)
	} else if co, ok := s.registry.Company(key); ok {
		approved = co.TakeLoan(*req.Amount)
	}

	ctx := logger.WithAccountKey(c.Request.Context(), key)
	s.log.Infof(ctx, "loan of %s approved=%t", req.Amount, approved)
	if approved {
		s.afterMutation(ctx)
	}
	writeJSON(c, http.StatusOK, loanResponse{Approved: approved})
}

// emailHistory 處理 POST /accounts/:key/history/email。
func (s *Server) emailHistory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Param("key")
	a, err := s.lookup(key)
	if err != nil {
		writeDomainErr(c, err)
		return
	}
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}

	ctx := logger.WithAccountKey(c.Request.Context(), key)
	if !a.SendHistoryViaEmail(ctx, s.mailer, req.Email) {
		s.log.Warnf(ctx, "history email to %s not sent", req.Email)
		writeJSON(c, http.StatusBadGateway, sentResponse{Sent: false})
		return
	}
	writeJSON(c, http.StatusOK, sentResponse{Sent: true})
}

// SaveAll 將目前所有帳戶寫入儲存後端，回傳寫入筆數。
func (s *Server) SaveAll(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, errStoreMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := bank.ToRecords(s.registry.All())
	if err := s.store.SaveAll(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// LoadAll 以儲存後端的內容整份取代目前的帳戶集合，回傳載入筆數。
// 還原失敗時不變更現有帳戶。
func (s *Server) LoadAll(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, errStoreMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	accounts, err := bank.FromRecords(records)
	if err != nil {
		return 0, err
	}
	s.registry.Replace(accounts)
	return len(accounts), nil
}

// save 處理 POST /accounts/save。
func (s *Server) save(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := s.SaveAll(ctx)
	if err != nil {
		s.log.Errorf(ctx, "save accounts failed: %v", err)
		writeDomainErr(c, err)
		return
	}
	s.log.Infof(ctx, "saved %d accounts", n)
	writeMessage(c, http.StatusOK, savedMessage(n))
}

// load 處理 POST /accounts/load。
func (s *Server) load(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := s.LoadAll(ctx)
	if err != nil {
		s.log.Errorf(ctx, "load accounts failed: %v", err)
		writeDomainErr(c, err)
		return
	}
	s.log.Infof(ctx, "loaded %d accounts", n)
	writeMessage(c, http.StatusOK, loadedMessage(n))
}
