package bondora

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
)

type auctionRecord struct {
	AuctionID            *string          `json:"AuctionId"`
	RemainingAmount      *decimal.Decimal `json:"RemainingAmount"`
	Interest             *float64         `json:"Interest"`
	UserBids             userBids         `json:"UserBids"`
	Rating               string           `json:"Rating"`
	ProbabilityOfDefault *float64         `json:"ProbabilityOfDefault"`
	LossGivenDefault     *float64         `json:"LossGivenDefault"`
	LoanDuration         int              `json:"LoanDuration"`
}

// userBids accepts the marketplace's count, a boolean flag, or the list of
// the account's bids on the auction.
type userBids struct {
	n   int
	set bool
}

func (u *userBids) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		u.n, u.set = 0, false
	case b[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		u.n, u.set = len(items), true
	case string(b) == "true":
		u.n, u.set = 1, true
	case string(b) == "false":
		u.n, u.set = 0, true
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("unsupported UserBids value %s", string(b))
		}
		if n < 0 {
			return fmt.Errorf("negative UserBids %v", n)
		}
		u.n, u.set = int(n), true
	}
	return nil
}

func decodeAuctions(payload json.RawMessage) ([]bidder.Auction, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return []bidder.Auction{}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(payload, &raws); err != nil {
		return nil, fmt.Errorf("%w: auctions payload is not a list: %v", ErrMalformedAuction, err)
	}
	out := make([]bidder.Auction, 0, len(raws))
	for i, raw := range raws {
		a, err := decodeAuction(raw)
		if err != nil {
			return nil, fmt.Errorf("auction #%d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAuction(raw json.RawMessage) (bidder.Auction, error) {
	var rec auctionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return bidder.Auction{}, fmt.Errorf("%w: %v", ErrMalformedAuction, err)
	}
	switch {
	case rec.AuctionID == nil || *rec.AuctionID == "":
		return bidder.Auction{}, fmt.Errorf("%w: missing AuctionId", ErrMalformedAuction)
	case rec.RemainingAmount == nil:
		return bidder.Auction{}, fmt.Errorf("%w: %s missing RemainingAmount", ErrMalformedAuction, *rec.AuctionID)
	case rec.Interest == nil:
		return bidder.Auction{}, fmt.Errorf("%w: %s missing Interest", ErrMalformedAuction, *rec.AuctionID)
	case !rec.UserBids.set:
		return bidder.Auction{}, fmt.Errorf("%w: %s missing UserBids", ErrMalformedAuction, *rec.AuctionID)
	}
	return bidder.Auction{
		ID:                   *rec.AuctionID,
		RemainingAmount:      *rec.RemainingAmount,
		Interest:             *rec.Interest,
		UserBids:             rec.UserBids.n,
		Rating:               rec.Rating,
		ProbabilityOfDefault: rec.ProbabilityOfDefault,
		LossGivenDefault:     rec.LossGivenDefault,
		LoanDuration:         rec.LoanDuration,
		Raw:                  append(json.RawMessage(nil), raw...),
	}, nil
}

// BidSummary is one entry of the account's bid list.
type BidSummary struct {
	ID              string          `json:"Id"`
	AuctionID       string          `json:"AuctionId"`
	RequestedAmount decimal.Decimal `json:"RequestedBidAmount"`
	ActualAmount    decimal.Decimal `json:"ActualBidAmount"`
	StatusCode      int             `json:"StatusCode"`
	BidRequestedOn  *time.Time      `json:"BidRequestedOn,omitempty"`
	BidProcessedOn  *time.Time      `json:"BidProcessedOn,omitempty"`
}
