package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdanelson/bondora-auto-investor/internal/auth"
	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
	"github.com/pdanelson/bondora-auto-investor/internal/client/bondora"
	"github.com/pdanelson/bondora-auto-investor/internal/db"
	"github.com/pdanelson/bondora-auto-investor/internal/models"
	"github.com/pdanelson/bondora-auto-investor/internal/repository"
	"github.com/pdanelson/bondora-auto-investor/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

type stubTrigger struct {
	res     *bidder.PassResult
	err     error
	trigger string
}

func (s *stubTrigger) RunOnce(ctx context.Context, trigger string) (*bidder.PassResult, error) {
	s.trigger = trigger
	return s.res, s.err
}

type stubJournal struct {
	items  []models.PassRun
	total  int64
	detail *service.PassDetail
	err    error
	params repository.ListPassRunsParams
}

func (s *stubJournal) ListPasses(ctx context.Context, params repository.ListPassRunsParams) ([]models.PassRun, int64, error) {
	s.params = params
	return s.items, s.total, s.err
}

func (s *stubJournal) GetPass(ctx context.Context, passID string) (*service.PassDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.detail != nil && s.detail.Run.PassID == passID {
		return s.detail, nil
	}
	return nil, nil
}

func TestPasses_Trigger(t *testing.T) {
	res := &bidder.PassResult{
		ID: "p1",
		Plan: bidder.Plan{
			Outcome:   bidder.OutcomeSubmitted,
			Balance:   decimal.NewFromInt(100),
			Remaining: decimal.NewFromInt(50),
			Bids: []bidder.Bid{
				{AuctionID: "a1", Rank: 1, Amount: decimal.NewFromInt(50), MinAmount: decimal.NewFromInt(5), Score: 0.97, Interest: 20},
			},
		},
	}
	trig := &stubTrigger{res: res}
	r := NewRouter(RouterDeps{Passes: &PassesHandler{Invest: trig}})

	w, env := do(t, r, http.MethodPost, "/api/v1/passes", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.TriggerManual, trig.trigger)
	var view passView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "p1", view.PassID)
	assert.Equal(t, "submitted", view.Outcome)
	assert.Equal(t, "50", view.Committed)
	require.Len(t, view.Bids, 1)
	assert.Equal(t, "a1", view.Bids[0].AuctionID)
	assert.Equal(t, "5", view.Bids[0].MinAmount)
}

func TestPasses_TriggerErrors(t *testing.T) {
	cases := []struct {
		name   string
		res    *bidder.PassResult
		err    error
		status int
		stage  string
	}{
		{name: "in flight", err: service.ErrPassInFlight, status: http.StatusConflict},
		{name: "switched off", err: service.ErrInvestingDisabled, status: http.StatusLocked},
		{
			name:   "stage failure",
			res:    &bidder.PassResult{ID: "p9", Plan: bidder.Plan{Outcome: bidder.OutcomeFailed}},
			err:    &bidder.StageError{Stage: bidder.StageSubmit, Err: errors.New("rejected")},
			status: http.StatusBadGateway,
			stage:  bidder.StageSubmit,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter(RouterDeps{Passes: &PassesHandler{Invest: &stubTrigger{res: tc.res, err: tc.err}}})

			w, env := do(t, r, http.MethodPost, "/api/v1/passes", "")

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.status, env.Code)
			if tc.stage != "" {
				assert.Equal(t, tc.stage, env.Meta["stage"])
				assert.Equal(t, "p9", env.Meta["pass_id"])
			}
		})
	}
}

func TestPasses_List(t *testing.T) {
	j := &stubJournal{
		items: []models.PassRun{{PassID: "p2", Outcome: "no_bids"}, {PassID: "p1", Outcome: "no_bids"}},
		total: 5,
	}
	r := NewRouter(RouterDeps{Passes: &PassesHandler{Journal: j}})

	w, env := do(t, r, http.MethodGet, "/api/v1/passes?limit=2&offset=0&outcome=no_bids&since=2024-03-01T00:00:00Z", "")

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, j.params.Outcome)
	assert.Equal(t, "no_bids", *j.params.Outcome)
	require.NotNil(t, j.params.Since)
	assert.True(t, j.params.Since.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, j.params.Limit)
	assert.Equal(t, true, env.Meta["has_next"])
	assert.Equal(t, float64(5), env.Meta["total"])
}

func TestPasses_ListRejectsBadTime(t *testing.T) {
	r := NewRouter(RouterDeps{Passes: &PassesHandler{Journal: &stubJournal{}}})

	w, _ := do(t, r, http.MethodGet, "/api/v1/passes?until=yesterday", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasses_ListWithoutStore(t *testing.T) {
	r := NewRouter(RouterDeps{Passes: &PassesHandler{Journal: &stubJournal{err: service.ErrNoStore}}})

	w, _ := do(t, r, http.MethodGet, "/api/v1/passes", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPasses_Get(t *testing.T) {
	j := &stubJournal{detail: &service.PassDetail{
		Run:  models.PassRun{PassID: "p1", Outcome: "submitted"},
		Bids: []models.PlacedBid{{PassID: "p1", AuctionID: "a1", Rank: 1}},
	}}
	r := NewRouter(RouterDeps{Passes: &PassesHandler{Journal: j}})

	w, env := do(t, r, http.MethodGet, "/api/v1/passes/p1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"a1"`)

	w, _ = do(t, r, http.MethodGet, "/api/v1/passes/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubSwitches struct {
	sw     service.Switch
	err    error
	setErr error
	by     string
}

func (s *stubSwitches) List(ctx context.Context) ([]service.Switch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []service.Switch{s.sw}, nil
}

func (s *stubSwitches) Get(ctx context.Context, key string) (service.Switch, error) {
	return s.sw, s.err
}

func (s *stubSwitches) SetEnabled(ctx context.Context, key string, enabled bool, by string) (service.Switch, error) {
	if s.setErr != nil {
		return service.Switch{}, s.setErr
	}
	s.by = by
	s.sw = service.Switch{Key: key, Enabled: enabled, UpdatedBy: by}
	return s.sw, nil
}

func TestSettings_AutoInvest(t *testing.T) {
	signer := auth.JWT{Secret: []byte("s3cret"), Issuer: "autoinvestor"}
	tok, _, err := signer.Sign(auth.Claims{Role: auth.RoleOperator, RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"}})
	require.NoError(t, err)
	sw := &stubSwitches{sw: service.Switch{Key: service.FeatureAutoInvest, Enabled: true}}
	r := NewRouter(RouterDeps{Auth: signer, Settings: &SettingsHandler{Settings: sw}})
	bearer := []string{"Authorization", "Bearer " + tok}

	w, _ := do(t, r, http.MethodGet, "/api/v1/settings/auto-invest", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := do(t, r, http.MethodGet, "/api/v1/settings/auto-invest", "", bearer...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"key":"feature.auto_invest","enabled":true,"updated_at":"0001-01-01T00:00:00Z"}`, string(env.Data))

	w, _ = do(t, r, http.MethodPut, "/api/v1/settings/auto-invest", `{"enabled":false}`, bearer...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sw.sw.Enabled)
	assert.Equal(t, "ops", sw.by)

	w, _ = do(t, r, http.MethodPut, "/api/v1/settings/auto-invest", `{}`, bearer...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettings_List(t *testing.T) {
	sw := &stubSwitches{sw: service.Switch{Key: service.FeatureAutoInvest, Enabled: false, UpdatedBy: "ops"}}
	r := NewRouter(RouterDeps{Settings: &SettingsHandler{Settings: sw}})

	w, env := do(t, r, http.MethodGet, "/api/v1/settings", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), env.Meta["total"])
	var items []service.Switch
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, service.FeatureAutoInvest, items[0].Key)
	assert.False(t, items[0].Enabled)

	sw.err = errors.New("db down")
	w, _ = do(t, r, http.MethodGet, "/api/v1/settings", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSettings_WithoutStore(t *testing.T) {
	r := NewRouter(RouterDeps{Settings: &SettingsHandler{Settings: &stubSwitches{setErr: service.ErrNoStore}}})

	w, _ := do(t, r, http.MethodPut, "/api/v1/settings/auto-invest", `{"enabled":true}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type stubMarket struct {
	err error
}

func (s *stubMarket) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("98.75"), s.err
}

func (s *stubMarket) OpenAuctions(ctx context.Context) ([]bidder.Auction, error) {
	if s.err != nil {
		return nil, s.err
	}
	pd := 0.04
	return []bidder.Auction{{ID: "a1", RemainingAmount: decimal.NewFromInt(500), Interest: 30, ProbabilityOfDefault: &pd}}, nil
}

func (s *stubMarket) ListBids(ctx context.Context) ([]bondora.BidSummary, error) {
	return []bondora.BidSummary{{ID: "b1", AuctionID: "a1"}}, s.err
}

func TestMarketplace(t *testing.T) {
	r := NewRouter(RouterDeps{Marketplace: &MarketplaceHandler{Market: &stubMarket{}}})

	w, env := do(t, r, http.MethodGet, "/api/v1/marketplace/balance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_available":"98.75"}`, string(env.Data))

	w, env = do(t, r, http.MethodGet, "/api/v1/marketplace/auctions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"auction_id":"a1"`)
	assert.Contains(t, string(env.Data), `"probability_of_default":0.04`)

	w, env = do(t, r, http.MethodGet, "/api/v1/marketplace/bids", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), env.Meta["total"])
}

func TestMarketplace_UpstreamFailure(t *testing.T) {
	r := NewRouter(RouterDeps{Marketplace: &MarketplaceHandler{Market: &stubMarket{err: errors.New("timeout")}}})

	w, env := do(t, r, http.MethodGet, "/api/v1/marketplace/auctions", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "timeout", env.Message)
}

func TestHealth(t *testing.T) {
	t.Run("without db", func(t *testing.T) {
		r := NewRouter(RouterDeps{Health: &HealthHandler{}})

		w, _ := do(t, r, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "disabled")

		w, _ = do(t, r, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("db down", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()
		mock.ExpectPing().WillReturnError(errors.New("refused"))
		r := NewRouter(RouterDeps{Health: &HealthHandler{DB: &db.DB{SQL: sqlDB}}})

		w, _ := do(t, r, http.MethodGet, "/readyz", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("db up", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()
		mock.ExpectPing()
		r := NewRouter(RouterDeps{Health: &HealthHandler{DB: &db.DB{SQL: sqlDB}}})

		w, _ := do(t, r, http.MethodGet, "/readyz", "")

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRouter_MetricsAndNoRoute(t *testing.T) {
	r := NewRouter(RouterDeps{MetricsHandler: promhttp.Handler()})

	w, _ := do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, r, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", env.Message)
}
