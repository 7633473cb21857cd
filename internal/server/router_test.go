package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"deposit-core/internal/handler"
)

type memSettings map[uint64]bool

func (m memSettings) GetAutoConvert(_ context.Context, uid uint64) (bool, error) { return m[uid], nil }

func (m memSettings) SetAutoConvert(_ context.Context, uid uint64, enabled bool) error {
	m[uid] = enabled
	return nil
}

func newTestRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHTTPRouter(Handlers{
		Webhook:  handler.NewWebhookHandler(nil),
		Balance:  handler.NewBalanceHandler(nil),
		Settings: handler.NewSettingsHandler(memSettings{}),
		Ledger:   handler.NewLedgerHandler(nil),
		Wallet:   handler.NewWalletHandler(nil, nil, nil),
	}, token)
}

func TestHealthAndRequestID(t *testing.T) {
	r := newTestRouter("tok")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
}

func TestInternalRoutesNeedToken(t *testing.T) {
	r := newTestRouter("tok")

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusForbidden},
		{"wrong", "nope", http.StatusForbidden},
		{"ok", "tok", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/internal/v1/users/1/auto-convert", nil)
			if tc.token != "" {
				req.Header.Set(HeaderInternalToken, tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestEmptyTokenLocksInternalRoutes(t *testing.T) {
	r := newTestRouter("")

	req := httptest.NewRequest(http.MethodGet, "/internal/v1/users/1/auto-convert", nil)
	req.Header.Set(HeaderInternalToken, "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter("tok")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
