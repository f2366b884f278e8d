package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
)

var ErrMissingFeature = errors.New("auction lacks a feature the scorer needs")

// Heuristic scores auctions from the marketplace's own default estimate.
//
// In confidence mode the score is the repayment probability 1-PD. In profit
// mode it is the after-tax annual return net of expected loss:
//
//	interest/100 * (1-tax) * (1-PD) - PD * LGD
type Heuristic struct {
	Mode       bidder.Mode
	TaxRate    float64
	DefaultLGD float64
}

func NewHeuristic(mode bidder.Mode, taxRate, defaultLGD float64) *Heuristic {
	return &Heuristic{Mode: mode, TaxRate: taxRate, DefaultLGD: defaultLGD}
}

func (h *Heuristic) Score(ctx context.Context, auctions []bidder.Auction) ([]float64, error) {
	out := make([]float64, 0, len(auctions))
	for _, a := range auctions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if a.ProbabilityOfDefault == nil {
			return nil, fmt.Errorf("%w: %s has no ProbabilityOfDefault", ErrMissingFeature, a.ID)
		}
		pd := clamp01(*a.ProbabilityOfDefault)
		switch h.Mode {
		case bidder.ModeConfidence:
			out = append(out, 1-pd)
		case bidder.ModeProfit:
			lgd := h.DefaultLGD
			if a.LossGivenDefault != nil {
				lgd = clamp01(*a.LossGivenDefault)
			}
			out = append(out, a.Interest/100*(1-h.TaxRate)*(1-pd)-pd*lgd)
		default:
			return nil, fmt.Errorf("%w: unknown scoring mode %q", bidder.ErrInvalidConfig, h.Mode)
		}
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(0, math.Min(1, v))
}
