package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"deposit-core/pkg/config"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
	"deposit-core/pkg/signature"
)

// SuccessCode is the provider's embedded "ok" status.
const SuccessCode = 10000

const defaultTimeout = 30 * time.Second

const (
	pathAssets         = "/ccpayment/v2/getAppCoinAssetList"
	pathDepositAddress = "/ccpayment/v2/getOrCreateAppDepositAddress"
	pathWithdraw       = "/ccpayment/v2/applyAppWithdrawToNetwork"
	pathDepositRecord  = "/ccpayment/v2/getAppDepositRecord"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client calls the payment provider. It never retries; that is the
// caller's decision.
type Client struct {
	baseURL    string
	signer     *signature.Signer
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(cfg config.ProviderConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		signer:     signature.NewSigner(cfg.AppID, cfg.AppSecret),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAssets lists the merchant balances per coin.
func (c *Client) GetAssets(ctx context.Context) ([]Asset, error) {
	var out struct {
		Assets []Asset `json:"assets"`
	}
	if err := c.do(ctx, pathAssets, nil, &out); err != nil {
		return nil, err
	}
	return out.Assets, nil
}

// GetOrCreateDepositAddress returns the permanent deposit address bound to
// referenceID on chain. The provider creates it on first use.
func (c *Client) GetOrCreateDepositAddress(ctx context.Context, referenceID, chain string) (*DepositAddress, error) {
	req := map[string]string{"referenceId": referenceID, "chain": chain}
	var out DepositAddress
	if err := c.do(ctx, pathDepositAddress, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*Withdrawal, error) {
	var out Withdrawal
	if err := c.do(ctx, pathWithdraw, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetDepositRecord(ctx context.Context, recordID string) (*DepositRecord, error) {
	var out struct {
		Record DepositRecord `json:"record"`
	}
	if err := c.do(ctx, pathDepositRecord, map[string]string{"recordId": recordID}, &out); err != nil {
		return nil, err
	}
	return &out.Record, nil
}

func (c *Client) do(ctx context.Context, path string, reqBody, out interface{}) error {
	start := time.Now()
	err := c.call(ctx, path, reqBody, out)
	monitor.ObserveProvider(path, start, err)
	if err != nil {
		logger.Warn("provider call failed", zap.String("endpoint", path), zap.Error(err))
	}
	return err
}

func (c *Client) call(ctx context.Context, path string, reqBody, out interface{}) error {
	body, err := encodeBody(reqBody)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	for k, v := range c.signer.Headers(c.now(), body) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UnavailableError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UnavailableError{Endpoint: path, Err: err}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return &UnavailableError{Endpoint: path, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	// responses are signed the same way as webhooks when the provider opts in
	if sign := resp.Header.Get(signature.HeaderSign); sign != "" {
		if !c.signer.Verify(raw, resp.Header.Get(signature.HeaderAppID), sign, resp.Header.Get(signature.HeaderTimestamp)) {
			return &Error{Endpoint: path, Code: resp.StatusCode, Message: "response signature mismatch"}
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &Error{Endpoint: path, Code: resp.StatusCode, Message: "malformed response body"}
	}
	if env.Code != SuccessCode {
		return &Error{Endpoint: path, Code: env.Code, Message: env.Msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Endpoint: path, Code: env.Code, Message: "malformed response data"}
	}
	return nil
}

// encodeBody serializes the request. An absent or empty object is sent and
// signed as the empty string, not "{}".
func encodeBody(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "{}" || string(b) == "null" {
		return nil, nil
	}
	return b, nil
}
