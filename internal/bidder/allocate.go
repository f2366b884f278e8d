package bidder

import "github.com/shopspring/decimal"

const (
	SkipAuctionBelowMin = "auction_below_min"
	SkipRoundedBelowMin = "rounded_below_min"
	SkipDuplicate       = "duplicate_auction"
)

// Skip records why a ranked candidate received no bid.
type Skip struct {
	AuctionID string          `json:"auction_id"`
	Reason    string          `json:"reason"`
	Amount    decimal.Decimal `json:"amount"`
}

type Allocation struct {
	Bids      []Bid
	Remaining decimal.Decimal
	Skips     []Skip
}

// Committed is the total amount across all bids.
func (a Allocation) Committed() decimal.Decimal {
	total := decimal.Zero
	for _, b := range a.Bids {
		total = total.Add(b.Amount)
	}
	return total
}

// Allocate walks ranked candidates once and commits capital greedily.
// It stops as soon as the remaining balance drops below the minimum bid.
// A balance below the minimum yields no bids and no error, and so do limits
// that fail Limits.Validate.
func Allocate(balance decimal.Decimal, ranked []Candidate, lim Limits) Allocation {
	out := Allocation{Remaining: balance}
	if lim.Validate() != nil {
		return out
	}
	seen := make(map[string]struct{}, len(ranked))
	for _, c := range ranked {
		if out.Remaining.LessThan(lim.MinInvestment) {
			break
		}
		if _, ok := seen[c.Auction.ID]; ok {
			out.Skips = append(out.Skips, Skip{AuctionID: c.Auction.ID, Reason: SkipDuplicate})
			continue
		}
		bid, next, skip, ok := step(out.Remaining, c, lim)
		if !ok {
			out.Skips = append(out.Skips, skip)
			continue
		}
		seen[c.Auction.ID] = struct{}{}
		bid.Rank = len(out.Bids) + 1
		out.Bids = append(out.Bids, bid)
		out.Remaining = next
	}
	return out
}

// step sizes one bid and returns the balance left after it.
// Callers guarantee remaining >= lim.MinInvestment.
func step(remaining decimal.Decimal, c Candidate, lim Limits) (Bid, decimal.Decimal, Skip, bool) {
	a := c.Auction
	if a.RemainingAmount.LessThan(lim.MinInvestment) {
		return Bid{}, remaining, Skip{AuctionID: a.ID, Reason: SkipAuctionBelowMin, Amount: a.RemainingAmount}, false
	}
	amount := decimal.Min(a.RemainingAmount, lim.MaxInvestment, remaining)
	amount = roundDown(amount, lim.Increment)
	if amount.LessThan(lim.MinInvestment) {
		return Bid{}, remaining, Skip{AuctionID: a.ID, Reason: SkipRoundedBelowMin, Amount: amount}, false
	}
	bid := Bid{
		AuctionID: a.ID,
		MinAmount: lim.MinInvestment,
		Amount:    amount,
		Score:     c.Score,
		Interest:  a.Interest,
	}
	return bid, remaining.Sub(amount), Skip{}, true
}

// roundDown truncates amount to a multiple of increment. A non-positive
// increment leaves amount unchanged.
func roundDown(amount, increment decimal.Decimal) decimal.Decimal {
	if !increment.IsPositive() {
		return amount
	}
	return amount.Div(increment).Floor().Mul(increment)
}
