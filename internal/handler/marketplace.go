package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
	"github.com/pdanelson/bondora-auto-investor/internal/client/bondora"
)

type marketplaceReader interface {
	AccountBalance(ctx context.Context) (decimal.Decimal, error)
	OpenAuctions(ctx context.Context) ([]bidder.Auction, error)
	ListBids(ctx context.Context) ([]bondora.BidSummary, error)
}

// MarketplaceHandler exposes read-only marketplace views for operators.
type MarketplaceHandler struct {
	Market marketplaceReader
}

func (h *MarketplaceHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/marketplace")
	g.GET("/balance", h.balance)
	g.GET("/auctions", h.auctions)
	g.GET("/bids", h.bids)
}

func (h *MarketplaceHandler) balance(c *gin.Context) {
	if h.Market == nil {
		Error(c, http.StatusServiceUnavailable, "marketplace unavailable", nil)
		return
	}
	bal, err := h.Market.AccountBalance(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"total_available": bal.String()}, nil)
}

type auctionView struct {
	AuctionID            string   `json:"auction_id"`
	RemainingAmount      string   `json:"remaining_amount"`
	Interest             float64  `json:"interest"`
	UserBids             int      `json:"user_bids"`
	Rating               string   `json:"rating,omitempty"`
	ProbabilityOfDefault *float64 `json:"probability_of_default,omitempty"`
	LoanDuration         int      `json:"loan_duration,omitempty"`
}

func (h *MarketplaceHandler) auctions(c *gin.Context) {
	if h.Market == nil {
		Error(c, http.StatusServiceUnavailable, "marketplace unavailable", nil)
		return
	}
	items, err := h.Market.OpenAuctions(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]auctionView, 0, len(items))
	for _, a := range items {
		out = append(out, auctionView{
			AuctionID:            a.ID,
			RemainingAmount:      a.RemainingAmount.String(),
			Interest:             a.Interest,
			UserBids:             a.UserBids,
			Rating:               a.Rating,
			ProbabilityOfDefault: a.ProbabilityOfDefault,
			LoanDuration:         a.LoanDuration,
		})
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

func (h *MarketplaceHandler) bids(c *gin.Context) {
	if h.Market == nil {
		Error(c, http.StatusServiceUnavailable, "marketplace unavailable", nil)
		return
	}
	items, err := h.Market.ListBids(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}
