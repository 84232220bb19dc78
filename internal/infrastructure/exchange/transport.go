package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bingx-market-analyzer/internal/domain"
)

const (
	BingXBaseURL    = "https://open-api.bingx.com"
	BingXSandboxURL = "https://open-api-vst.bingx.com"
)

// transport issues one raw call against the exchange and classifies the
// outcome into the error taxonomy. It knows nothing about retries or
// rate limits.
type transport interface {
	request(ctx context.Context, method, path, endpoint string, params url.Values, private bool) ([]byte, error)
}

type bingxTransport struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	timeNow   func() time.Time // for testing
}

func newBingXTransport(apiKey, apiSecret, baseURL string, timeout time.Duration) *bingxTransport {
	return &bingxTransport{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		timeNow:   time.Now,
	}
}

func (t *bingxTransport) sign(query string) string {
	h := hmac.New(sha256.New, []byte(t.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// request sends one call. Private calls carry a millisecond timestamp
// and an HMAC-SHA256 signature over the encoded query string.
func (t *bingxTransport) request(ctx context.Context, method, path, endpoint string, params url.Values, private bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}

	if private {
		params.Set("timestamp", strconv.FormatInt(t.timeNow().UnixMilli(), 10))
	}
	query := params.Encode()
	if private {
		query += "&signature=" + t.sign(query)
	}

	reqURL := t.baseURL + path
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: err}
	}
	if private {
		req.Header.Set("X-BX-APIKEY", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418:
		return nil, &domain.RateLimitedError{Endpoint: endpoint}
	case resp.StatusCode >= 500:
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	var envelope struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: fmt.Errorf("malformed response: %w", err)}
	}

	if envelope.Code != 0 {
		if isRateLimitCode(envelope.Code) {
			return nil, &domain.RateLimitedError{Endpoint: endpoint}
		}
		return nil, &domain.ExchangeError{Endpoint: endpoint, Code: envelope.Code, Msg: envelope.Msg}
	}

	if resp.StatusCode >= 400 {
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	return body, nil
}

// 100410 is the documented throttle code; 80014/80016 show up in
// practice when the per-IP window is exhausted.
func isRateLimitCode(code int) bool {
	switch code {
	case 100410, 80014, 80016:
		return true
	}
	return false
}
