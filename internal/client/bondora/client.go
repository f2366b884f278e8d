package bondora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
)

const DefaultBaseURL = "https://api.bondora.com/api/v1"

// ErrMalformedAuction also matches bidder.ErrMalformedInput.
var ErrMalformedAuction = fmt.Errorf("%w: auction record", bidder.ErrMalformedInput)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// APIError is a non-2xx answer or an envelope with Success=false.
type APIError struct {
	Status   int
	Messages []string
	Body     string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("bondora API error (%d): %s", e.Status, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("bondora API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

type envelope struct {
	Payload json.RawMessage `json:"Payload"`
	Success *bool           `json:"Success"`
	Errors  []apiMessage    `json:"Errors"`
	Error   *apiMessage     `json:"Error"`
}

type apiMessage struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
	Details string `json:"Details"`
}

func (m apiMessage) String() string {
	if m.Details != "" {
		return m.Message + ": " + m.Details
	}
	return m.Message
}

func (e envelope) messages() []string {
	var out []string
	for _, m := range e.Errors {
		out = append(out, m.String())
	}
	if e.Error != nil {
		out = append(out, e.Error.String())
	}
	return out
}

// do sends one request and returns the envelope payload.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(raw)}
		if decodeErr == nil {
			apiErr.Messages = env.messages()
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if env.Success != nil && !*env.Success {
		return nil, &APIError{Status: resp.StatusCode, Messages: env.messages(), Body: string(raw)}
	}
	return env.Payload, nil
}

type balancePayload struct {
	TotalAvailable *decimal.Decimal `json:"TotalAvailable"`
}

// AccountBalance returns the funds available for new bids.
func (c *Client) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	payload, err := c.do(ctx, http.MethodGet, "account/balance", nil)
	if err != nil {
		return decimal.Zero, err
	}
	var p balancePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode balance: %w", err)
	}
	if p.TotalAvailable == nil {
		return decimal.Zero, fmt.Errorf("%w: balance has no TotalAvailable", bidder.ErrMalformedInput)
	}
	return *p.TotalAvailable, nil
}

// OpenAuctions returns the current auction snapshot. One undecodable record
// fails the whole call.
func (c *Client) OpenAuctions(ctx context.Context) ([]bidder.Auction, error) {
	payload, err := c.do(ctx, http.MethodGet, "auctions", nil)
	if err != nil {
		return nil, err
	}
	return decodeAuctions(payload)
}

// ListBids returns the account's bids as reported by the marketplace.
func (c *Client) ListBids(ctx context.Context) ([]BidSummary, error) {
	payload, err := c.do(ctx, http.MethodGet, "bids", nil)
	if err != nil {
		return nil, err
	}
	var out []BidSummary
	if len(payload) == 0 || string(payload) == "null" {
		return []BidSummary{}, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bids: %w", err)
	}
	return out, nil
}

// bidRequest sends amounts as JSON numbers; decimal marshals to strings.
type bidRequest struct {
	AuctionID string      `json:"AuctionId"`
	Amount    json.Number `json:"Amount"`
	MinAmount json.Number `json:"MinAmount"`
}

// SubmitBids posts all bids of a pass in one request.
func (c *Client) SubmitBids(ctx context.Context, bids []bidder.Bid) error {
	if len(bids) == 0 {
		return nil
	}
	req := struct {
		Bids []bidRequest `json:"Bids"`
	}{Bids: make([]bidRequest, 0, len(bids))}
	for _, b := range bids {
		req.Bids = append(req.Bids, bidRequest{
			AuctionID: b.AuctionID,
			Amount:    json.Number(b.Amount.String()),
			MinAmount: json.Number(b.MinAmount.String()),
		})
	}
	_, err := c.do(ctx, http.MethodPost, "bid", req)
	return err
}
