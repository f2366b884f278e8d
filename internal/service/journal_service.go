package service

import (
	"context"

	"github.com/pdanelson/bondora-auto-investor/internal/models"
	"github.com/pdanelson/bondora-auto-investor/internal/repository"
)

// PassDetail is a journal row with the bids it decided.
type PassDetail struct {
	Run  models.PassRun     `json:"run"`
	Bids []models.PlacedBid `json:"bids"`
}

// JournalService is the read side of the pass journal.
type JournalService struct {
	Repo repository.JournalRepository
}

func (s *JournalService) ListPasses(ctx context.Context, params repository.ListPassRunsParams) ([]models.PassRun, int64, error) {
	if s == nil || s.Repo == nil {
		return []models.PassRun{}, 0, ErrNoStore
	}
	items, err := s.Repo.ListPassRuns(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountPassRuns(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []models.PassRun{}
	}
	return items, total, nil
}

// GetPass returns nil when the pass is unknown.
func (s *JournalService) GetPass(ctx context.Context, passID string) (*PassDetail, error) {
	if s == nil || s.Repo == nil {
		return nil, ErrNoStore
	}
	run, err := s.Repo.GetPassRunByPassID(ctx, passID)
	if err != nil || run == nil {
		return nil, err
	}
	bids, err := s.Repo.ListPlacedBidsByPassID(ctx, run.PassID)
	if err != nil {
		return nil, err
	}
	if bids == nil {
		bids = []models.PlacedBid{}
	}
	return &PassDetail{Run: *run, Bids: bids}, nil
}
