package bidder

import (
	"fmt"
	"math"
)

// WithoutPriorBids drops auctions the account already bid on. It runs before
// scoring so the scorer never sees them.
func WithoutPriorBids(auctions []Auction) []Auction {
	if len(auctions) == 0 {
		return nil
	}
	out := make([]Auction, 0, len(auctions))
	for _, a := range auctions {
		if a.HasExistingBid() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Filter pairs auctions with their scores and keeps those clearing th.
// scores[i] belongs to auctions[i]. It does not mutate inputs.
func Filter(auctions []Auction, scores []float64, th Thresholds) ([]Candidate, error) {
	if len(scores) != len(auctions) {
		return nil, fmt.Errorf("%w: %d scores for %d auctions", ErrScoreMismatch, len(scores), len(auctions))
	}
	out := make([]Candidate, 0, len(auctions))
	for i, a := range auctions {
		score := scores[i]
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("%w: auction %s scored %v", ErrMalformedInput, a.ID, score)
		}
		if a.HasExistingBid() {
			continue
		}
		if !attractive(a, score, th) {
			continue
		}
		out = append(out, Candidate{Auction: a, Score: score})
	}
	return out, nil
}

func attractive(a Auction, score float64, th Thresholds) bool {
	switch th.Mode {
	case ModeConfidence:
		if th.ConfidenceThreshold != nil && score < *th.ConfidenceThreshold {
			return false
		}
		if th.MinInterest != nil && a.Interest < *th.MinInterest {
			return false
		}
		return true
	case ModeProfit:
		if th.ProfitThreshold == nil {
			return false
		}
		return score >= *th.ProfitThreshold
	default:
		return false
	}
}
