package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
)

// Remote asks a model server to score a batch of raw auction records.
type Remote struct {
	url        string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scorer error (%d): %s", e.Status, e.Body)
}

type scoreRequest struct {
	Auctions []json.RawMessage `json:"auctions"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

func NewRemote(httpClient *http.Client, url string) *Remote {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Remote{url: url, httpClient: httpClient}
}

func (r *Remote) Score(ctx context.Context, auctions []bidder.Auction) ([]float64, error) {
	if len(auctions) == 0 {
		return []float64{}, nil
	}
	reqBody := scoreRequest{Auctions: make([]json.RawMessage, 0, len(auctions))}
	for _, a := range auctions {
		raw := a.Raw
		if len(raw) == 0 {
			b, err := json.Marshal(map[string]any{
				"AuctionId":       a.ID,
				"RemainingAmount": a.RemainingAmount,
				"Interest":        a.Interest,
				"Rating":          a.Rating,
				"LoanDuration":    a.LoanDuration,
			})
			if err != nil {
				return nil, err
			}
			raw = b
		}
		reqBody.Auctions = append(reqBody.Auctions, raw)
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	var out scoreResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: scorer response: %v", bidder.ErrMalformedInput, err)
	}
	return out.Scores, nil
}
