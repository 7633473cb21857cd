package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/pkg/config"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/signature"
)

const (
	testAppID  = "app-1"
	testSecret = "s3cret"
)

var fixedNow = time.Unix(1700000000, 0)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.ProviderConfig{
		BaseURL:   srv.URL,
		AppID:     testAppID,
		AppSecret: testSecret,
		Timeout:   time.Second,
	}, WithClock(func() time.Time { return fixedNow }))
}

func TestClientSignsRequests(t *testing.T) {
	signer := signature.NewSigner(testAppID, testSecret)

	var gotBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathDepositAddress, r.URL.Path)
		assert.Equal(t, testAppID, r.Header.Get(signature.HeaderAppID))
		assert.Equal(t, "1700000000", r.Header.Get(signature.HeaderTimestamp))
		assert.True(t, signer.Verify(gotBody, r.Header.Get(signature.HeaderAppID),
			r.Header.Get(signature.HeaderSign), r.Header.Get(signature.HeaderTimestamp)))
		_, _ = w.Write([]byte(`{"code":10000,"msg":"success","data":{"address":"0xabc","memo":""}}`))
	})

	addr, err := c.GetOrCreateDepositAddress(context.Background(), "42", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", addr.Address)
	assert.JSONEq(t, `{"referenceId":"42","chain":"ETH"}`, string(gotBody))
}

func TestClientEmptyBodySignsEmptyString(t *testing.T) {
	signer := signature.NewSigner(testAppID, testSecret)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		assert.Equal(t, signer.Sign("1700000000", nil), r.Header.Get(signature.HeaderSign))
		_, _ = w.Write([]byte(`{"code":10000,"msg":"success","data":{"assets":[{"coinId":1280,"coinSymbol":"USDT","available":"125.5"}]}}`))
	})

	assets, err := c.GetAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "USDT", assets[0].CoinSymbol)
	assert.True(t, decimal.RequireFromString("125.5").Equal(assets[0].Available))
}

func TestClientMapsProviderCodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":11000,"msg":"Insufficient balance","data":null}`))
	})

	_, err := c.RequestWithdrawal(context.Background(), WithdrawalRequest{
		CoinID: 1280, Chain: "TRX", Address: "T...", OrderID: "o-1", Amount: decimal.NewFromInt(5),
	})
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 11000, perr.Code)
	assert.Equal(t, "Insufficient balance", perr.Message)
	assert.ErrorIs(t, err, errno.ErrPaymentProvider)
	assert.NotErrorIs(t, err, errno.ErrProviderUnavailable)

	code, msg := errno.Decode(err)
	assert.Equal(t, errno.ErrPaymentProvider.Code, code)
	assert.NotContains(t, msg, "Insufficient")
}

func TestClientUnavailable(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.GetAssets(context.Background())
		assert.ErrorIs(t, err, errno.ErrProviderUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)
		c.httpClient.Timeout = 50 * time.Millisecond

		_, err := c.GetDepositRecord(context.Background(), "r-1")
		require.Error(t, err)
		var uerr *UnavailableError
		assert.True(t, errors.As(err, &uerr))
		assert.ErrorIs(t, err, errno.ErrProviderUnavailable)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewClient(config.ProviderConfig{BaseURL: url, AppID: testAppID, AppSecret: testSecret})
		_, err := c.GetAssets(context.Background())
		assert.ErrorIs(t, err, errno.ErrProviderUnavailable)
	})
}

func TestClientVerifiesSignedResponses(t *testing.T) {
	signer := signature.NewSigner(testAppID, testSecret)
	body := []byte(`{"code":10000,"msg":"success","data":{"record":{"recordId":"r-1","referenceId":"42","coinSymbol":"USDT","amount":"20.00","status":"Success"}}}`)

	t.Run("valid", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			for k, v := range signer.Headers(fixedNow, body) {
				w.Header().Set(k, v)
			}
			_, _ = w.Write(body)
		})
		rec, err := c.GetDepositRecord(context.Background(), "r-1")
		require.NoError(t, err)
		assert.Equal(t, "42", rec.ReferenceID)
		assert.True(t, rec.Completed())
	})

	t.Run("tampered", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			for k, v := range signer.Headers(fixedNow, body) {
				w.Header().Set(k, v)
			}
			_, _ = w.Write([]byte(`{"code":10000,"msg":"success","data":{"record":{"recordId":"r-1","amount":"2000.00"}}}`))
		})
		_, err := c.GetDepositRecord(context.Background(), "r-1")
		assert.ErrorIs(t, err, errno.ErrPaymentProvider)
	})
}
