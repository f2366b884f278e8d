package bidder

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedInput = errors.New("malformed input")
	ErrInvalidConfig  = errors.New("invalid config")
	ErrScoreMismatch  = errors.New("scorer returned wrong number of scores")
)

// Mode selects how scores are interpreted. One mode is active per deployment.
type Mode string

const (
	// ModeConfidence treats the score as a repayment probability in [0,1].
	ModeConfidence Mode = "confidence"
	// ModeProfit treats the score as a predicted net return.
	ModeProfit Mode = "profit"
)

// Auction is one open loan listing as seen in a single marketplace snapshot.
type Auction struct {
	ID              string
	RemainingAmount decimal.Decimal
	// Interest is the nominal annual rate in percent.
	Interest float64
	// UserBids is the number of bids this account already holds on the auction.
	UserBids int

	Rating               string
	ProbabilityOfDefault *float64
	LossGivenDefault     *float64
	LoanDuration         int
	Raw                  json.RawMessage
}

func (a Auction) HasExistingBid() bool {
	return a.UserBids > 0
}

// Candidate is an auction that has been scored.
type Candidate struct {
	Auction Auction
	Score   float64
}

// Bid is a capital commitment against one auction.
type Bid struct {
	AuctionID string
	MinAmount decimal.Decimal
	Amount    decimal.Decimal

	Rank     int
	Score    float64
	Interest float64
}

// Thresholds configures the attractiveness filter. Nil fields are not applied.
type Thresholds struct {
	Mode                Mode
	ConfidenceThreshold *float64
	MinInterest         *float64
	ProfitThreshold     *float64
}

func (t Thresholds) Validate() error {
	switch t.Mode {
	case ModeConfidence:
		if t.ProfitThreshold != nil {
			return fmt.Errorf("%w: profit_threshold is not allowed in confidence mode", ErrInvalidConfig)
		}
		if t.ConfidenceThreshold != nil {
			c := *t.ConfidenceThreshold
			if math.IsNaN(c) || c < 0 || c > 1 {
				return fmt.Errorf("%w: confidence_threshold %v outside [0,1]", ErrInvalidConfig, c)
			}
		}
		if t.MinInterest != nil && (math.IsNaN(*t.MinInterest) || math.IsInf(*t.MinInterest, 0)) {
			return fmt.Errorf("%w: min_interest is not a number", ErrInvalidConfig)
		}
	case ModeProfit:
		if t.ConfidenceThreshold != nil || t.MinInterest != nil {
			return fmt.Errorf("%w: confidence_threshold and min_interest are not allowed in profit mode", ErrInvalidConfig)
		}
		if t.ProfitThreshold == nil {
			return fmt.Errorf("%w: profit mode requires profit_threshold", ErrInvalidConfig)
		}
		if math.IsNaN(*t.ProfitThreshold) || math.IsInf(*t.ProfitThreshold, 0) {
			return fmt.Errorf("%w: profit_threshold is not a number", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown scoring mode %q", ErrInvalidConfig, t.Mode)
	}
	return nil
}

// Limits bounds every bid amount. A zero Increment disables rounding.
type Limits struct {
	MinInvestment decimal.Decimal
	MaxInvestment decimal.Decimal
	Increment     decimal.Decimal
}

func (l Limits) Validate() error {
	if !l.MinInvestment.IsPositive() {
		return fmt.Errorf("%w: min_investment must be positive", ErrInvalidConfig)
	}
	if l.MaxInvestment.LessThan(l.MinInvestment) {
		return fmt.Errorf("%w: max_investment %s below min_investment %s", ErrInvalidConfig, l.MaxInvestment, l.MinInvestment)
	}
	if l.Increment.IsNegative() {
		return fmt.Errorf("%w: bid increment must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Config is everything a pass needs besides its collaborators.
type Config struct {
	Thresholds Thresholds
	Limits     Limits
}

func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return c.Limits.Validate()
}

// ValidateAuctions rejects the whole snapshot if any record is unusable.
func ValidateAuctions(auctions []Auction) error {
	seen := make(map[string]struct{}, len(auctions))
	for i, a := range auctions {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return fmt.Errorf("%w: auction #%d has no id", ErrMalformedInput, i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate auction id %s", ErrMalformedInput, id)
		}
		seen[id] = struct{}{}
		if a.RemainingAmount.IsNegative() {
			return fmt.Errorf("%w: auction %s has negative remaining amount %s", ErrMalformedInput, id, a.RemainingAmount)
		}
		if a.UserBids < 0 {
			return fmt.Errorf("%w: auction %s has negative bid count", ErrMalformedInput, id)
		}
		if math.IsNaN(a.Interest) || math.IsInf(a.Interest, 0) {
			return fmt.Errorf("%w: auction %s has non-numeric interest", ErrMalformedInput, id)
		}
	}
	return nil
}
