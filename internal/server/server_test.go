// internal/server/server_test.go
//
// server 層的整合測試：以 httptest.Server 模擬完整 HTTP 請求流程，驗證
//  1. 各端點的狀態碼映射（201 / 200 / 400 / 404 / 409 / 422 / 502）。
//  2. 成功變更後 persist() 被觸發，被拒絕的操作不觸發。
//  3. save / load 透過 JSONStore 往返。
//
// 外部協作者（稅務登記、郵件）以記憶體假物件取代。
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bankapi/internal/bank"
	"bankapi/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// doJSON 送出 JSON 請求並驗證狀態碼；out 非 nil 時解析回應。
func doJSON(t *testing.T, c *http.Client, method, url string, body any, wantCode int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantCode {
		var raw bytes.Buffer
		_, _ = raw.ReadFrom(resp.Body)
		t.Fatalf("%s %s code=%d want=%d body=%s", method, url, resp.StatusCode, wantCode, raw.String())
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

type fakeTaxes struct {
	status map[string]string
}

func (f *fakeTaxes) Lookup(_ context.Context, nip string, _ time.Time) (*bank.TaxSubject, error) {
	st, ok := f.status[nip]
	if !ok {
		return nil, nil
	}
	return &bank.TaxSubject{Nip: nip, StatusVat: st}, nil
}

type fakeMailer struct {
	result bool
	body   string
	to     string
}

func (f *fakeMailer) Send(_ context.Context, _, body, to string) bool {
	f.body, f.to = body, to
	return f.result
}

func newTestServer(t *testing.T, persist func() error, deps Deps) (*httptest.Server, *Server) {
	t.Helper()
	s := NewServer(bank.NewRegistry(), persist, deps)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// TestHTTPFlowAndPersistHook 驗證個人帳戶 CRUD 與轉帳流程，且只有成功的變更會觸發 persist。
func TestHTTPFlowAndPersistHook(t *testing.T) {
	var persistCalls int32
	ts, _ := newTestServer(t, func() error {
		atomic.AddInt32(&persistCalls, 1)
		return nil
	}, Deps{})
	cli := ts.Client()
	api := ts.URL + "/api/accounts"

	// 建立帳戶；重複 PESEL → 409
	var msg messageBody
	doJSON(t, cli, "POST", api, map[string]any{"name": "John", "surname": "Doe", "pesel": "90010112345"}, 201, &msg)
	if msg.Message != msgAccountCreated {
		t.Fatalf("message=%q", msg.Message)
	}
	var conflict errorBody
	doJSON(t, cli, "POST", api, map[string]any{"name": "X", "surname": "Y", "pesel": "90010112345"}, 409, &conflict)
	if !strings.Contains(conflict.Error, "90010112345") {
		t.Fatalf("conflict error=%q", conflict.Error)
	}

	// 促銷碼：1961 年出生符合資格，餘額 50
	doJSON(t, cli, "POST", api, map[string]any{"name": "Jane", "surname": "Smith", "pesel": "61010112345", "promo_code": "PROM_ABC"}, 201, nil)
	var jane accountView
	doJSON(t, cli, "GET", api+"/61010112345", nil, 200, &jane)
	if !jane.Balance.Equal(dec("50")) || jane.Type != bank.KindPersonal || jane.Name != "Jane" {
		t.Fatalf("jane=%+v", jane)
	}

	var cnt countResponse
	doJSON(t, cli, "GET", api+"/count", nil, 200, &cnt)
	if cnt.Count != 2 {
		t.Fatalf("count=%d want 2", cnt.Count)
	}
	var list []accountView
	doJSON(t, cli, "GET", api, nil, 200, &list)
	if len(list) != 2 || list[0].Pesel != "90010112345" || list[1].Pesel != "61010112345" {
		t.Fatalf("list=%+v", list)
	}
	doJSON(t, cli, "GET", api+"/00000000000", nil, 404, nil)

	// 轉帳
	john := api + "/90010112345"
	doJSON(t, cli, "POST", john+"/transfer", map[string]any{"amount": 100, "type": "incoming"}, 200, &msg)
	if msg.Message != msgTransferAccept {
		t.Fatalf("transfer message=%q", msg.Message)
	}
	doJSON(t, cli, "POST", john+"/transfer", map[string]any{"amount": 500, "type": "outgoing"}, 422, nil)
	doJSON(t, cli, "POST", john+"/transfer", map[string]any{"amount": "30", "type": "outgoing"}, 200, nil)
	doJSON(t, cli, "POST", john+"/transfer", map[string]any{"amount": 20, "type": "express"}, 200, nil)
	doJSON(t, cli, "POST", john+"/transfer", map[string]any{"amount": 1000, "type": "express"}, 422, nil)
	doJSON(t, cli, "POST", john+"/transfer", map[string]any{"amount": 10, "type": "wire"}, 400, nil)
	doJSON(t, cli, "POST", john+"/transfer", map[string]any{"type": "incoming"}, 400, nil)
	doJSON(t, cli, "POST", api+"/00000000000/transfer", map[string]any{"amount": 10, "type": "incoming"}, 404, nil)

	var got accountView
	doJSON(t, cli, "GET", john, nil, 200, &got)
	if !got.Balance.Equal(dec("49")) {
		t.Fatalf("balance=%s want 49", got.Balance)
	}
	want := []string{"100", "-30", "-20", "-1"}
	if len(got.History) != len(want) {
		t.Fatalf("history=%v", got.History)
	}
	for i := range want {
		if !got.History[i].Equal(dec(want[i])) {
			t.Fatalf("history=%v want %v", got.History, want)
		}
	}

	// 更新只改有提供的欄位
	doJSON(t, cli, "PATCH", john, map[string]any{"name": "Johnny"}, 200, nil)
	doJSON(t, cli, "GET", john, nil, 200, &got)
	if got.Name != "Johnny" || got.Surname != "Doe" {
		t.Fatalf("after patch=%+v", got)
	}
	doJSON(t, cli, "PATCH", api+"/00000000000", map[string]any{"name": "X"}, 404, nil)

	// 刪除
	doJSON(t, cli, "DELETE", api+"/61010112345", nil, 200, nil)
	doJSON(t, cli, "DELETE", api+"/61010112345", nil, 404, nil)
	doJSON(t, cli, "GET", api+"/count", nil, 200, &cnt)
	if cnt.Count != 1 {
		t.Fatalf("count=%d want 1", cnt.Count)
	}

	// create×2 + incoming + outgoing + express + patch + delete
	if calls := atomic.LoadInt32(&persistCalls); calls != 7 {
		t.Fatalf("persist calls=%d want 7", calls)
	}
}

// TestAccountAmountsEncodedAsNumbers 驗證 GET 回應中的 balance 與 history 為 JSON 數字而非字串。
func TestAccountAmountsEncodedAsNumbers(t *testing.T) {
	ts, _ := newTestServer(t, nil, Deps{})
	cli := ts.Client()
	api := ts.URL + "/api/accounts"

	doJSON(t, cli, "POST", api, map[string]any{"name": "John", "surname": "Doe", "pesel": "90010112345"}, 201, nil)
	doJSON(t, cli, "POST", api+"/90010112345/transfer", map[string]any{"amount": 100, "type": "incoming"}, 200, nil)
	doJSON(t, cli, "POST", api+"/90010112345/transfer", map[string]any{"amount": "20.5", "type": "outgoing"}, 200, nil)

	for _, url := range []string{api + "/90010112345", api} {
		resp, err := cli.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		body := string(raw)
		if !strings.Contains(body, `"balance":79.5`) || !strings.Contains(body, `"history":[100,-20.5]`) {
			t.Fatalf("GET %s body=%s", url, body)
		}
	}

	var generic map[string]any
	doJSON(t, cli, "GET", api+"/90010112345", nil, 200, &generic)
	if b, ok := generic["balance"].(float64); !ok || b != 79.5 {
		t.Fatalf("balance=%#v want number 79.5", generic["balance"])
	}
}

// TestBadRequests 驗證缺少欄位與 JSON 格式錯誤回傳 400，未知路徑回傳 404。
func TestBadRequests(t *testing.T) {
	ts, _ := newTestServer(t, nil, Deps{})
	cli := ts.Client()
	api := ts.URL + "/api/accounts"

	var verr errorBody
	doJSON(t, cli, "POST", api, map[string]any{}, 400, &verr)
	if verr.Error != "Validation failed" || len(verr.Details) != 3 {
		t.Fatalf("validation=%+v", verr)
	}

	req, _ := http.NewRequest("POST", api, bytes.NewBufferString("{bad json}"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := cli.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("bad json code=%d want 400", resp.StatusCode)
	}

	// 未知路徑
	doJSON(t, cli, "GET", ts.URL+"/api/unknown", nil, 404, nil)
}

// TestCompanyEndpoints 驗證企業帳戶建立（含稅務登記拒絕）、更新與貸款。
func TestCompanyEndpoints(t *testing.T) {
	var persistCalls int32
	taxes := &fakeTaxes{status: map[string]string{
		"1234567890": bank.ActiveVATStatus,
		"5555555555": "Zwolniony",
	}}
	ts, _ := newTestServer(t, func() error {
		atomic.AddInt32(&persistCalls, 1)
		return nil
	}, Deps{Taxes: taxes})
	cli := ts.Client()
	companies := ts.URL + "/api/companies"
	api := ts.URL + "/api/accounts"

	doJSON(t, cli, "POST", companies, map[string]any{"company_name": "Test Corp", "nip": "1234567890"}, 201, nil)
	doJSON(t, cli, "POST", companies, map[string]any{"company_name": "Test Corp", "nip": "1234567890"}, 409, nil)
	doJSON(t, cli, "POST", companies, map[string]any{"company_name": "Old Corp", "nip": "5555555555"}, 400, nil)
	doJSON(t, cli, "POST", companies, map[string]any{"company_name": "Ghost", "nip": "9999999999"}, 400, nil)

	// 長度不符：不查詢，以 Invalid 建立
	doJSON(t, cli, "POST", companies, map[string]any{"company_name": "Short", "nip": "123"}, 201, nil)
	var inv accountView
	doJSON(t, cli, "GET", api+"/"+bank.InvalidID, nil, 200, &inv)
	if inv.Type != bank.KindCompany || inv.Nip != bank.InvalidID || inv.CompanyName != "Short" {
		t.Fatalf("invalid company=%+v", inv)
	}

	corp := api + "/1234567890"
	doJSON(t, cli, "POST", corp+"/transfer", map[string]any{"amount": 10, "type": "express"}, 400, nil)
	doJSON(t, cli, "PATCH", corp, map[string]any{"company_name": "Renamed"}, 200, nil)

	// 貸款：需 ZUS 繳款且餘額 >= 2 倍
	var loan loanResponse
	doJSON(t, cli, "POST", corp+"/loan", map[string]any{"amount": 100}, 200, &loan)
	if loan.Approved {
		t.Fatal("loan without ZUS payment must be rejected")
	}
	doJSON(t, cli, "POST", corp+"/transfer", map[string]any{"amount": 5000, "type": "incoming"}, 200, nil)
	doJSON(t, cli, "POST", corp+"/transfer", map[string]any{"amount": 1775, "type": "outgoing"}, 200, nil)
	doJSON(t, cli, "POST", corp+"/loan", map[string]any{"amount": 1000}, 200, &loan)
	if !loan.Approved {
		t.Fatal("loan should be approved")
	}
	doJSON(t, cli, "POST", corp+"/loan", map[string]any{"amount": 5000}, 200, &loan)
	if loan.Approved {
		t.Fatal("loan above half of balance must be rejected")
	}
	doJSON(t, cli, "POST", corp+"/loan", map[string]any{"amount": 0}, 400, nil)

	var got accountView
	doJSON(t, cli, "GET", corp, nil, 200, &got)
	if !got.Balance.Equal(dec("4225")) || got.CompanyName != "Renamed" {
		t.Fatalf("company=%+v", got)
	}

	// create×2 + patch + incoming + outgoing + approved loan
	if calls := atomic.LoadInt32(&persistCalls); calls != 6 {
		t.Fatalf("persist calls=%d want 6", calls)
	}
}

// TestPersonalLoan 驗證個人貸款：無歷史時拒絕，連續三筆入帳後核准並入帳。
func TestPersonalLoan(t *testing.T) {
	ts, _ := newTestServer(t, nil, Deps{})
	cli := ts.Client()
	acc := ts.URL + "/api/accounts/90010112345"

	doJSON(t, cli, "POST", ts.URL+"/api/accounts", map[string]any{"name": "John", "surname": "Doe", "pesel": "90010112345"}, 201, nil)
	var loan loanResponse
	doJSON(t, cli, "POST", acc+"/loan", map[string]any{"amount": 500}, 200, &loan)
	if loan.Approved {
		t.Fatal("empty history must not qualify")
	}
	for i := 0; i < 3; i++ {
		doJSON(t, cli, "POST", acc+"/transfer", map[string]any{"amount": 100, "type": "incoming"}, 200, nil)
	}
	doJSON(t, cli, "POST", acc+"/loan", map[string]any{"amount": 500}, 200, &loan)
	if !loan.Approved {
		t.Fatal("three incoming transfers should qualify")
	}
	var got accountView
	doJSON(t, cli, "GET", acc, nil, 200, &got)
	if !got.Balance.Equal(dec("800")) || len(got.History) != 3 {
		t.Fatalf("after loan=%+v", got)
	}
}

// TestEmailHistory 驗證歷史郵件寄送成功回 200、失敗回 502。
func TestEmailHistory(t *testing.T) {
	mailer := &fakeMailer{result: true}
	ts, _ := newTestServer(t, nil, Deps{Mailer: mailer})
	cli := ts.Client()
	acc := ts.URL + "/api/accounts/90010112345"

	doJSON(t, cli, "POST", ts.URL+"/api/accounts", map[string]any{"name": "John", "surname": "Doe", "pesel": "90010112345"}, 201, nil)
	doJSON(t, cli, "POST", acc+"/transfer", map[string]any{"amount": 100, "type": "incoming"}, 200, nil)

	var sent sentResponse
	doJSON(t, cli, "POST", acc+"/history/email", map[string]any{"email": "john@example.com"}, 200, &sent)
	if !sent.Sent || mailer.to != "john@example.com" || mailer.body != "Personal account history: [100]" {
		t.Fatalf("sent=%v mailer=%+v", sent, mailer)
	}

	mailer.result = false
	doJSON(t, cli, "POST", acc+"/history/email", map[string]any{"email": "john@example.com"}, 502, &sent)
	if sent.Sent {
		t.Fatal("sent should be false")
	}
	doJSON(t, cli, "POST", acc+"/history/email", map[string]any{"email": "not-an-email"}, 400, nil)
	doJSON(t, cli, "POST", ts.URL+"/api/accounts/00000000000/history/email", map[string]any{"email": "a@b.pl"}, 404, nil)
}

// TestEmailHistoryWithoutMailer 未設定通知器時回傳 502。
func TestEmailHistoryWithoutMailer(t *testing.T) {
	ts, _ := newTestServer(t, nil, Deps{})
	cli := ts.Client()
	doJSON(t, cli, "POST", ts.URL+"/api/accounts", map[string]any{"name": "John", "surname": "Doe", "pesel": "90010112345"}, 201, nil)
	doJSON(t, cli, "POST", ts.URL+"/api/accounts/90010112345/history/email", map[string]any{"email": "a@b.pl"}, 502, nil)
}

// TestSaveAndLoad 驗證 save / load 端點經由 JSONStore 往返，且 load 整份取代現有帳戶。
func TestSaveAndLoad(t *testing.T) {
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "accounts.json"))
	taxes := &fakeTaxes{status: map[string]string{"1234567890": bank.ActiveVATStatus}}

	ts1, _ := newTestServer(t, nil, Deps{Store: store, Taxes: taxes})
	cli := ts1.Client()
	doJSON(t, cli, "POST", ts1.URL+"/api/accounts", map[string]any{"name": "Jane", "surname": "Smith", "pesel": "61010112345", "promo_code": "PROM_X"}, 201, nil)
	doJSON(t, cli, "POST", ts1.URL+"/api/accounts/61010112345/transfer", map[string]any{"amount": "12.5", "type": "incoming"}, 200, nil)
	doJSON(t, cli, "POST", ts1.URL+"/api/companies", map[string]any{"company_name": "Test Corp", "nip": "1234567890"}, 201, nil)

	var msg messageBody
	doJSON(t, cli, "POST", ts1.URL+"/api/accounts/save", nil, 200, &msg)
	if msg.Message != "Successfully saved 2 accounts to database" {
		t.Fatalf("save message=%q", msg.Message)
	}

	// 第二個伺服器：先有一個不相干的帳戶，load 後應被取代
	ts2, _ := newTestServer(t, nil, Deps{Store: store})
	cli2 := ts2.Client()
	doJSON(t, cli2, "POST", ts2.URL+"/api/accounts", map[string]any{"name": "Tmp", "surname": "Tmp", "pesel": "99999999999"}, 201, nil)
	doJSON(t, cli2, "POST", ts2.URL+"/api/accounts/load", nil, 200, &msg)
	if msg.Message != "Successfully loaded 2 accounts from database" {
		t.Fatalf("load message=%q", msg.Message)
	}
	doJSON(t, cli2, "GET", ts2.URL+"/api/accounts/99999999999", nil, 404, nil)

	var jane accountView
	doJSON(t, cli2, "GET", ts2.URL+"/api/accounts/61010112345", nil, 200, &jane)
	if !jane.Balance.Equal(dec("62.5")) || len(jane.History) != 1 {
		t.Fatalf("jane after load=%+v", jane)
	}
	var corp accountView
	doJSON(t, cli2, "GET", ts2.URL+"/api/accounts/1234567890", nil, 200, &corp)
	if corp.Type != bank.KindCompany || corp.CompanyName != "Test Corp" {
		t.Fatalf("company after load=%+v", corp)
	}
}

// TestSaveWithoutStore 未設定儲存後端時回傳 503。
func TestSaveWithoutStore(t *testing.T) {
	ts, _ := newTestServer(t, nil, Deps{})
	doJSON(t, ts.Client(), "POST", ts.URL+"/api/accounts/save", nil, 503, nil)
	doJSON(t, ts.Client(), "POST", ts.URL+"/api/accounts/load", nil, 503, nil)
}

// TestHealthAndRequestID 驗證健康檢查端點與 X-Request-ID 的沿用及產生。
func TestHealthAndRequestID(t *testing.T) {
	ts, _ := newTestServer(t, nil, Deps{})

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 || resp.Header.Get(RequestIDHeader) == "" {
		t.Fatalf("health code=%d request id=%q", resp.StatusCode, resp.Header.Get(RequestIDHeader))
	}

	req, _ := http.NewRequest("GET", ts.URL+"/api/health", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) != "trace-123" {
		t.Fatalf("request id not echoed: %q", resp.Header.Get(RequestIDHeader))
	}
}

// TestPersistFailureDoesNotFailRequest persist 失敗只記錄，請求仍成功。
func TestPersistFailureDoesNotFailRequest(t *testing.T) {
	ts, _ := newTestServer(t, func() error { return context.DeadlineExceeded }, Deps{})
	doJSON(t, ts.Client(), "POST", ts.URL+"/api/accounts", map[string]any{"name": "John", "surname": "Doe", "pesel": "90010112345"}, 201, nil)
}

// TestServerSaveLoadDirect 驗證 SaveAll / LoadAll 可不經 HTTP 直接呼叫。
func TestServerSaveLoadDirect(t *testing.T) {
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "accounts.json"))
	reg := bank.NewRegistry()
	reg.Add(bank.NewPersonalAccount("John", "Doe", "90010112345", ""))
	s := NewServer(reg, nil, Deps{Store: store})

	n, err := s.SaveAll(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("SaveAll n=%d err=%v", n, err)
	}
	reg.Replace(nil)
	n, err = s.LoadAll(context.Background())
	if err != nil || n != 1 || reg.Count() != 1 {
		t.Fatalf("LoadAll n=%d err=%v count=%d", n, err, reg.Count())
	}
}
