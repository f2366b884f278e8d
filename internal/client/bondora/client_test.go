package bondora

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL+"/api/v1/", "secret-token")
}

func TestAccountBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/account/balance", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"Payload":{"Balance":120.5,"TotalAvailable":98.75},"Success":true,"Errors":null}`)
	})

	got, err := c.AccountBalance(context.Background())

	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("98.75")), "got=%s", got)
}

func TestAccountBalance_MissingField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Payload":{"Balance":120.5},"Success":true}`)
	})

	_, err := c.AccountBalance(context.Background())

	assert.ErrorIs(t, err, bidder.ErrMalformedInput)
}

func TestOpenAuctions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auctions", r.URL.Path)
		_, _ = io.WriteString(w, `{"Payload":[
			{"AuctionId":"a1","RemainingAmount":500,"Interest":30.5,"UserBids":0,"Rating":"B","ProbabilityOfDefault":0.04,"LoanDuration":60},
			{"AuctionId":"a2","RemainingAmount":"200.10","Interest":25,"UserBids":true},
			{"AuctionId":"a3","RemainingAmount":80,"Interest":21,"UserBids":[{"Amount":5},{"Amount":10}]},
			{"AuctionId":"a4","RemainingAmount":80,"Interest":21,"UserBids":false}
		],"Success":true}`)
	})

	got, err := c.OpenAuctions(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "a1", got[0].ID)
	assert.True(t, got[0].RemainingAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 30.5, got[0].Interest)
	assert.Equal(t, 0, got[0].UserBids)
	require.NotNil(t, got[0].ProbabilityOfDefault)
	assert.Equal(t, 0.04, *got[0].ProbabilityOfDefault)
	assert.Equal(t, 60, got[0].LoanDuration)
	assert.JSONEq(t, `{"AuctionId":"a1","RemainingAmount":500,"Interest":30.5,"UserBids":0,"Rating":"B","ProbabilityOfDefault":0.04,"LoanDuration":60}`, string(got[0].Raw))

	assert.True(t, got[1].RemainingAmount.Equal(decimal.RequireFromString("200.10")))
	assert.Equal(t, 1, got[1].UserBids)
	assert.Equal(t, 2, got[2].UserBids)
	assert.Equal(t, 0, got[3].UserBids)
}

func TestOpenAuctions_MalformedRecordFailsSnapshot(t *testing.T) {
	cases := map[string]string{
		"missing id":        `[{"RemainingAmount":1,"Interest":1,"UserBids":0}]`,
		"missing remaining": `[{"AuctionId":"a","Interest":1,"UserBids":0}]`,
		"missing interest":  `[{"AuctionId":"a","RemainingAmount":1,"UserBids":0}]`,
		"missing user bids": `[{"AuctionId":"a","RemainingAmount":1,"Interest":1}]`,
		"null user bids":    `[{"AuctionId":"a","RemainingAmount":1,"Interest":1,"UserBids":null}]`,
		"bad user bids":     `[{"AuctionId":"a","RemainingAmount":1,"Interest":1,"UserBids":"many"}]`,
		"negative bids":     `[{"AuctionId":"a","RemainingAmount":1,"Interest":1,"UserBids":-1}]`,
		"not a list":        `{"AuctionId":"a"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"Success":true,"Payload":`+payload+`}`)
			})

			_, err := c.OpenAuctions(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, bidder.ErrMalformedInput)
		})
	}
}

func TestOpenAuctions_EmptyPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Success":true,"Payload":null}`)
	})

	got, err := c.OpenAuctions(context.Background())

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSubmitBids(t *testing.T) {
	var body map[string][]map[string]any
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/bid", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"Success":true,"Payload":[]}`)
	})

	err := c.SubmitBids(context.Background(), []bidder.Bid{
		{AuctionID: "a1", Amount: decimal.NewFromInt(300), MinAmount: decimal.NewFromInt(50)},
		{AuctionID: "a2", Amount: decimal.RequireFromString("12.5"), MinAmount: decimal.NewFromInt(5)},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, body["Bids"], 2)
	assert.Equal(t, "a1", body["Bids"][0]["AuctionId"])
	assert.Equal(t, 300.0, body["Bids"][0]["Amount"])
	assert.Equal(t, 50.0, body["Bids"][0]["MinAmount"])
	assert.Equal(t, 12.5, body["Bids"][1]["Amount"])
}

func TestSubmitBids_EmptyIsNoop(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	assert.NoError(t, c.SubmitBids(context.Background(), nil))
}

func TestAPIErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"Success":false,"Errors":[{"Code":401,"Message":"Unauthorized","Details":"token expired"}]}`)
		})

		_, err := c.AccountBalance(context.Background())

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, []string{"Unauthorized: token expired"}, apiErr.Messages)
	})

	t.Run("success false", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"Success":false,"Error":{"Message":"auction closed"}}`)
		})

		err := c.SubmitBids(context.Background(), []bidder.Bid{{AuctionID: "a", Amount: decimal.NewFromInt(5), MinAmount: decimal.NewFromInt(5)}})

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Contains(t, apiErr.Error(), "auction closed")
	})

	t.Run("non json body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream down")
		})

		_, err := c.OpenAuctions(context.Background())

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "upstream down", apiErr.Body)
	})
}

func TestListBids(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bids", r.URL.Path)
		_, _ = io.WriteString(w, `{"Success":true,"Payload":[{"Id":"b1","AuctionId":"a1","RequestedBidAmount":50,"ActualBidAmount":50,"StatusCode":1}]}`)
	})

	got, err := c.ListBids(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].AuctionID)
	assert.True(t, got[0].RequestedAmount.Equal(decimal.NewFromInt(50)))
}
