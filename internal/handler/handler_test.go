package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/internal/handler/response"
	"deposit-core/internal/model"
	"deposit-core/internal/provider"
	"deposit-core/internal/service/ledger"
	"deposit-core/internal/service/webhook"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/signature"
	"deposit-core/pkg/validator"
)

const evmAddr = "0x52908400098527886E0F7030069857D2E4169EE7"

func init() {
	gin.SetMode(gin.TestMode)
	validator.Init()
}

func serve(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

type fakeProcessor struct {
	got webhook.Delivery
	res webhook.Result
}

func (p *fakeProcessor) Process(_ context.Context, d webhook.Delivery) (webhook.Result, error) {
	p.got = d
	if p.res.HTTPStatus() != http.StatusOK {
		return p.res, errno.ErrProcessing
	}
	return p.res, nil
}

func TestWebhookPassesRawBodyAndMapsStatus(t *testing.T) {
	cases := []struct {
		outcome webhook.Outcome
		status  int
	}{
		{webhook.OutcomeApplied, http.StatusOK},
		{webhook.OutcomeReplay, http.StatusOK},
		{webhook.OutcomeIgnoredStatus, http.StatusOK},
		{webhook.OutcomeBadSignature, http.StatusUnauthorized},
		{webhook.OutcomeInvalidPayload, http.StatusBadRequest},
		{webhook.OutcomeProcessingError, http.StatusInternalServerError},
	}
	// 多余空格也必须原样传给验签
	body := `{"recordId": "r-1",  "type":"deposit"}`

	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			proc := &fakeProcessor{res: webhook.Result{Outcome: tc.outcome, EventID: "r-1"}}
			r := gin.New()
			r.POST("/hook", NewWebhookHandler(proc).Receive)

			w := serve(r, http.MethodPost, "/hook", body, map[string]string{
				signature.HeaderAppID:     "app",
				signature.HeaderSign:      "abc",
				signature.HeaderTimestamp: "1700000000",
			})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, body, string(proc.got.Body))
			assert.Equal(t, "app", proc.got.AppID)
			assert.Equal(t, "abc", proc.got.Signature)
			assert.Equal(t, "1700000000", proc.got.Timestamp)

			var ack webhookAck
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
			assert.Equal(t, string(tc.outcome), ack.Outcome)
		})
	}
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	proc := &fakeProcessor{res: webhook.Result{Outcome: webhook.OutcomeApplied}}
	r := gin.New()
	r.POST("/hook", NewWebhookHandler(proc).Receive)

	w := serve(r, http.MethodPost, "/hook", string(bytes.Repeat([]byte("a"), maxWebhookBody+1)), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, proc.got.Body)
}

type fakeBalances struct {
	balances []ledger.Balance
	page     ledger.Page
	err      error
}

func (f *fakeBalances) GetBalance(context.Context, uint64) ([]ledger.Balance, error) {
	return f.balances, f.err
}

func (f *fakeBalances) Balances(context.Context, uint64) ([]ledger.Balance, error) {
	return f.balances, f.err
}

func (f *fakeBalances) ListTransactions(_ context.Context, _ uint64, p ledger.Page) (ledger.EntryPage, error) {
	f.page = p
	n := p.Normalize()
	return ledger.EntryPage{Page: n.Page, Size: n.Size, Sort: n.Sort}, f.err
}

func TestBalanceRoutes(t *testing.T) {
	fb := &fakeBalances{balances: []ledger.Balance{{Currency: "DGT", Amount: decimal.NewFromInt(210)}}}
	h := NewBalanceHandler(fb)
	r := gin.New()
	r.GET("/users/:id/balances", h.GetBalances)
	r.GET("/users/:id/transactions", h.ListTransactions)

	w := serve(r, http.MethodGet, "/users/7/balances", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := envelope(t, w)
	assert.Equal(t, errno.OK.Code, resp.Code)
	assert.Contains(t, w.Body.String(), `"currency":"DGT"`)

	w = serve(r, http.MethodGet, "/users/7/transactions?page=2&size=5&sort=asc", "", nil)
	assert.Equal(t, errno.OK.Code, envelope(t, w).Code)
	assert.Equal(t, ledger.Page{Page: 2, Size: 5, Sort: "asc"}, fb.page)

	w = serve(r, http.MethodGet, "/users/7/transactions?size=500", "", nil)
	assert.Equal(t, errno.ErrBind.Code, envelope(t, w).Code)

	w = serve(r, http.MethodGet, "/users/7/transactions?page=184467440737095518&size=100", "", nil)
	assert.Equal(t, errno.ErrBind.Code, envelope(t, w).Code)

	w = serve(r, http.MethodGet, "/users/abc/balances", "", nil)
	assert.Equal(t, errno.ErrUserNotFound.Code, envelope(t, w).Code)
}

func TestBalanceErrorIsMasked(t *testing.T) {
	r := gin.New()
	r.GET("/users/:id/balances", NewBalanceHandler(&fakeBalances{err: errors.New("pq: connection reset")}).GetBalances)

	w := serve(r, http.MethodGet, "/users/7/balances", "", nil)
	resp := envelope(t, w)
	assert.Equal(t, errno.InternalServerError.Code, resp.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

type fakeSettings struct {
	flags map[uint64]bool
}

func (f *fakeSettings) GetAutoConvert(_ context.Context, uid uint64) (bool, error) {
	v, ok := f.flags[uid]
	if !ok {
		return true, nil
	}
	return v, nil
}

func (f *fakeSettings) SetAutoConvert(_ context.Context, uid uint64, enabled bool) error {
	f.flags[uid] = enabled
	return nil
}

func TestAutoConvertRoutes(t *testing.T) {
	fs := &fakeSettings{flags: map[uint64]bool{}}
	h := NewSettingsHandler(fs)
	r := gin.New()
	r.GET("/users/:id/auto-convert", h.GetAutoConvert)
	r.PUT("/users/:id/auto-convert", h.SetAutoConvert)

	w := serve(r, http.MethodPut, "/users/9/auto-convert", `{"enabled":false}`, nil)
	assert.Equal(t, errno.OK.Code, envelope(t, w).Code)
	assert.False(t, fs.flags[9])

	w = serve(r, http.MethodGet, "/users/9/auto-convert", "", nil)
	assert.Contains(t, w.Body.String(), `"enabled":false`)

	// 缺省字段不能当成 false
	w = serve(r, http.MethodPut, "/users/9/auto-convert", `{}`, nil)
	assert.Equal(t, errno.ErrBind.Code, envelope(t, w).Code)
}

type fakeLedger struct {
	last      ledger.Entry
	direction string
	err       error
}

func (f *fakeLedger) Credit(_ context.Context, e ledger.Entry) (*model.LedgerEntry, bool, error) {
	f.last, f.direction = e, "credit"
	return &model.LedgerEntry{UserID: e.UserID, Currency: e.Currency, Delta: e.Amount}, true, f.err
}

func (f *fakeLedger) Debit(_ context.Context, e ledger.Entry) (*model.LedgerEntry, bool, error) {
	f.last, f.direction = e, "debit"
	if f.err != nil {
		return nil, false, f.err
	}
	return &model.LedgerEntry{UserID: e.UserID, Currency: e.Currency, Delta: e.Amount.Neg()}, true, nil
}

func (f *fakeLedger) GrantWelcomeBonus(_ context.Context, uid uint64) (*model.LedgerEntry, bool, error) {
	return &model.LedgerEntry{UserID: uid, Currency: "DGT", Delta: decimal.NewFromInt(10), Reason: model.ReasonWelcomeBonus}, true, nil
}

func TestCreateLedgerEntry(t *testing.T) {
	fl := &fakeLedger{}
	h := NewLedgerHandler(fl)
	r := gin.New()
	r.POST("/entries", h.CreateEntry)
	r.POST("/users/:id/welcome-bonus", h.GrantWelcomeBonus)

	w := serve(r, http.MethodPost, "/entries", `{"user_id":3,"currency":"dgt","amount":"12.5","direction":"debit","idempotency_key":"order-1"}`, nil)
	assert.Equal(t, errno.OK.Code, envelope(t, w).Code)
	assert.Equal(t, "debit", fl.direction)
	assert.Equal(t, "12.5", fl.last.Amount.String())
	assert.Equal(t, "order-1", fl.last.IdempotencyKey)

	w = serve(r, http.MethodPost, "/entries", `{"user_id":3,"currency":"DGT","amount":"-1","direction":"credit"}`, nil)
	assert.Equal(t, errno.ErrBind.Code, envelope(t, w).Code)

	w = serve(r, http.MethodPost, "/entries", `{"user_id":3,"currency":"DGT","amount":"1","direction":"sideways"}`, nil)
	assert.Equal(t, errno.ErrBind.Code, envelope(t, w).Code)

	fl.direction = ""
	for _, reason := range []string{model.ReasonWebhookReplayIgnored, model.ReasonDepositCrypto, model.ReasonWelcomeBonus} {
		w = serve(r, http.MethodPost, "/entries", `{"user_id":3,"currency":"DGT","amount":"5","direction":"credit","reason":"`+reason+`"}`, nil)
		assert.Equal(t, errno.ErrBind.Code, envelope(t, w).Code, reason)
	}
	assert.Empty(t, fl.direction)

	w = serve(r, http.MethodPost, "/entries", `{"user_id":3,"currency":"DGT","amount":"5","direction":"credit","reason":"withdrawal"}`, nil)
	assert.Equal(t, errno.OK.Code, envelope(t, w).Code)
	assert.Equal(t, model.ReasonWithdrawal, fl.last.Reason)

	fl.err = errno.ErrInsufficientBalance
	w = serve(r, http.MethodPost, "/entries", `{"user_id":3,"currency":"DGT","amount":"1","direction":"debit"}`, nil)
	assert.Equal(t, errno.ErrInsufficientBalance.Code, envelope(t, w).Code)

	w = serve(r, http.MethodPost, "/users/3/welcome-bonus", "", nil)
	assert.Equal(t, errno.OK.Code, envelope(t, w).Code)
	assert.Contains(t, w.Body.String(), `"created":true`)
}

type fakeProvider struct {
	ref, chain string
	withdrawal provider.WithdrawalRequest
	err        error
}

func (f *fakeProvider) GetOrCreateDepositAddress(_ context.Context, ref, chain string) (*provider.DepositAddress, error) {
	f.ref, f.chain = ref, chain
	if f.err != nil {
		return nil, f.err
	}
	return &provider.DepositAddress{Address: "TXyz"}, nil
}

func (f *fakeProvider) RequestWithdrawal(_ context.Context, req provider.WithdrawalRequest) (*provider.Withdrawal, error) {
	f.withdrawal = req
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Withdrawal{RecordID: "w-1"}, nil
}

func newWalletRouter(fp *fakeProvider, fb *fakeBalances) *gin.Engine {
	h := NewWalletHandler(fp, fb, nil)
	r := gin.New()
	r.POST("/users/:id/deposit-address", h.GetDepositAddress)
	r.POST("/withdrawals", h.CreateWithdrawal)
	return r
}

func TestDepositAddressUsesUserIDAsReference(t *testing.T) {
	fp := &fakeProvider{}
	r := newWalletRouter(fp, &fakeBalances{})

	w := serve(r, http.MethodPost, "/users/42/deposit-address", `{"chain":"trx"}`, nil)
	assert.Equal(t, errno.OK.Code, envelope(t, w).Code)
	assert.Equal(t, "42", fp.ref)
	assert.Equal(t, "TRX", fp.chain)

	fp.err = &provider.Error{Endpoint: "address", Code: 11000, Message: "secret detail"}
	w = serve(r, http.MethodPost, "/users/42/deposit-address", `{"chain":"trx"}`, nil)
	assert.Equal(t, errno.ErrPaymentProvider.Code, envelope(t, w).Code)
	assert.NotContains(t, w.Body.String(), "secret detail")
}

func TestCreateWithdrawal(t *testing.T) {
	fp := &fakeProvider{}
	fb := &fakeBalances{balances: []ledger.Balance{{Currency: "USDT", Amount: decimal.NewFromInt(50)}}}
	r := newWalletRouter(fp, fb)

	body := func(addr, amount string) string {
		return `{"user_id":5,"coin_id":1280,"coin_symbol":"USDT","chain":"eth","to_address":"` + addr + `","amount":"` + amount + `"}`
	}

	w := serve(r, http.MethodPost, "/withdrawals", body(evmAddr, "20"), nil)
	require.Equal(t, errno.OK.Code, envelope(t, w).Code)
	assert.Equal(t, "ETH", fp.withdrawal.Chain)
	assert.Equal(t, "20", fp.withdrawal.Amount.String())
	assert.Regexp(t, `^5-[0-9a-f-]{36}$`, fp.withdrawal.OrderID)

	w = serve(r, http.MethodPost, "/withdrawals", body("0x1234", "20"), nil)
	assert.Equal(t, errno.ErrInvalidAddress.Code, envelope(t, w).Code)

	w = serve(r, http.MethodPost, "/withdrawals", body(evmAddr, "51"), nil)
	assert.Equal(t, errno.ErrInsufficientBalance.Code, envelope(t, w).Code)

	fp.err = &provider.UnavailableError{Endpoint: "withdraw", Err: errors.New("dial tcp: refused")}
	w = serve(r, http.MethodPost, "/withdrawals", body(evmAddr, "20"), nil)
	assert.Equal(t, errno.ErrProviderUnavailable.Code, envelope(t, w).Code)
}
