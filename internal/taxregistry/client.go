// Package taxregistry 實作對「白名單」稅務登記 API 的 NIP 查詢。
//
//	GET {baseURL}/api/search/nip/{nip}?date=YYYY-MM-DD
//	→ {"result":{"subject":{...} | null}}
package taxregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bankapi/internal/bank"
	"bankapi/internal/logger"
)

// DefaultBaseURL 為財政部白名單 API 的正式位址。
const DefaultBaseURL = "https://wl-api.mf.gov.pl"

// ErrUnexpectedStatus 代表 API 回傳非 200 狀態。
var ErrUnexpectedStatus = errors.New("unexpected tax registry status")

type searchResponse struct {
	Result struct {
		Subject *bank.TaxSubject `json:"subject"`
	} `json:"result"`
}

// Client 為稅務登記查詢的 HTTP client。
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

var _ bank.TaxRegistry = (*Client)(nil)

// New 建立 client；baseURL 為空時使用 DefaultBaseURL。
func New(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Lookup 查詢 nip 在 date 當日的登記資料；查無主體時回傳 (nil, nil)。
func (c *Client) Lookup(ctx context.Context, nip string, date time.Time) (*bank.TaxSubject, error) {
	u := fmt.Sprintf("%s/api/search/nip/%s?date=%s",
		c.baseURL, url.PathEscape(nip), date.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnf(ctx, "tax registry request failed for nip %s: %v", nip, err)
		return nil, fmt.Errorf("tax registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warnf(ctx, "tax registry returned %d for nip %s", resp.StatusCode, nip)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.log.Warnf(ctx, "tax registry response for nip %s is malformed: %v", nip, err)
		return nil, fmt.Errorf("decode tax registry response: %w", err)
	}
	c.log.Debugf(ctx, "tax registry lookup nip=%s found=%t", nip, body.Result.Subject != nil)
	return body.Result.Subject, nil
}
