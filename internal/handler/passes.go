package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
	"github.com/pdanelson/bondora-auto-investor/internal/models"
	"github.com/pdanelson/bondora-auto-investor/internal/repository"
	"github.com/pdanelson/bondora-auto-investor/internal/service"
)

type passTrigger interface {
	RunOnce(ctx context.Context, trigger string) (*bidder.PassResult, error)
}

type journalReader interface {
	ListPasses(ctx context.Context, params repository.ListPassRunsParams) ([]models.PassRun, int64, error)
	GetPass(ctx context.Context, passID string) (*service.PassDetail, error)
}

type PassesHandler struct {
	Invest  passTrigger
	Journal journalReader
}

func (h *PassesHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/passes")
	g.GET("", h.list)
	g.POST("", h.trigger)
	g.GET("/:pass_id", h.get)
}

func (h *PassesHandler) list(c *gin.Context) {
	if h.Journal == nil {
		Error(c, http.StatusServiceUnavailable, "journal unavailable", nil)
		return
	}
	since, ok := timeQueryPtr(c, "since")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid since", nil)
		return
	}
	until, ok := timeQueryPtr(c, "until")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid until", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPassRunsParams{
		Limit:   limit,
		Offset:  offset,
		Outcome: strQueryPtr(c, "outcome"),
		Trigger: strQueryPtr(c, "trigger"),
		Since:   since,
		Until:   until,
		OrderBy: "started_at",
	}
	items, total, err := h.Journal.ListPasses(c.Request.Context(), params)
	if errors.Is(err, service.ErrNoStore) {
		Error(c, http.StatusServiceUnavailable, "journal unavailable", nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *PassesHandler) get(c *gin.Context) {
	if h.Journal == nil {
		Error(c, http.StatusServiceUnavailable, "journal unavailable", nil)
		return
	}
	passID := strings.TrimSpace(c.Param("pass_id"))
	if passID == "" {
		Error(c, http.StatusBadRequest, "invalid pass_id", nil)
		return
	}
	item, err := h.Journal.GetPass(c.Request.Context(), passID)
	if errors.Is(err, service.ErrNoStore) {
		Error(c, http.StatusServiceUnavailable, "journal unavailable", nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "pass not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *PassesHandler) trigger(c *gin.Context) {
	if h.Invest == nil {
		Error(c, http.StatusServiceUnavailable, "investing unavailable", nil)
		return
	}
	res, err := h.Invest.RunOnce(c.Request.Context(), service.TriggerManual)
	switch {
	case errors.Is(err, service.ErrPassInFlight):
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	case errors.Is(err, service.ErrInvestingDisabled):
		Error(c, http.StatusLocked, err.Error(), nil)
		return
	case err != nil:
		meta := map[string]any{}
		var se *bidder.StageError
		if errors.As(err, &se) {
			meta["stage"] = se.Stage
		}
		if res != nil {
			meta["pass_id"] = res.ID
		}
		Error(c, http.StatusBadGateway, err.Error(), meta)
		return
	}
	Ok(c, newPassView(res), nil)
}

type bidView struct {
	AuctionID string  `json:"auction_id"`
	Rank      int     `json:"rank"`
	Amount    string  `json:"amount"`
	MinAmount string  `json:"min_amount"`
	Score     float64 `json:"score"`
	Interest  float64 `json:"interest"`
}

type passView struct {
	PassID     string        `json:"pass_id"`
	Outcome    string        `json:"outcome"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Balance    string        `json:"balance"`
	Committed  string        `json:"committed"`
	Remaining  string        `json:"remaining"`
	Seen       int           `json:"seen"`
	Eligible   int           `json:"eligible"`
	Qualified  int           `json:"qualified"`
	Bids       []bidView     `json:"bids"`
	Skips      []bidder.Skip `json:"skips,omitempty"`
}

func newPassView(res *bidder.PassResult) passView {
	out := passView{
		PassID:     res.ID,
		Outcome:    string(res.Outcome),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Balance:    res.Balance.String(),
		Committed:  res.Committed().String(),
		Remaining:  res.Remaining.String(),
		Seen:       res.Seen,
		Eligible:   res.Eligible,
		Qualified:  res.Qualified,
		Bids:       make([]bidView, 0, len(res.Bids)),
		Skips:      res.Skips,
	}
	for _, b := range res.Bids {
		out.Bids = append(out.Bids, bidView{
			AuctionID: b.AuctionID,
			Rank:      b.Rank,
			Amount:    b.Amount.String(),
			MinAmount: b.MinAmount.String(),
			Score:     b.Score,
			Interest:  b.Interest,
		})
	}
	return out
}
