package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
	"github.com/pdanelson/bondora-auto-investor/internal/lock"
	"github.com/pdanelson/bondora-auto-investor/internal/metrics"
	"github.com/pdanelson/bondora-auto-investor/internal/models"
	"github.com/pdanelson/bondora-auto-investor/internal/notify"
	"github.com/pdanelson/bondora-auto-investor/internal/repository"
)

var (
	ErrPassInFlight      = errors.New("a bidding pass is already running")
	ErrInvestingDisabled = errors.New("auto invest is switched off")
	ErrNoStore           = errors.New("no database configured")
)

const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
	TriggerCLI    = "cli"
)

// PassRunner executes one bidding pass.
type PassRunner interface {
	RunPass(ctx context.Context) (*bidder.PassResult, error)
}

// InvestService wraps a pass with the kill switch, the pass lock, the
// journal, metrics and notifications.
type InvestService struct {
	Runner   PassRunner
	Locker   lock.Locker
	Journal  repository.JournalRepository
	Settings *SystemSettingsService
	Metrics  *metrics.Metrics
	Notifier notify.Notifier
	Logger   *zap.Logger
	DryRun   bool

	// PassTimeout bounds the pass itself. It should stay below the lock lease.
	PassTimeout time.Duration
	// SideEffectTimeout bounds journal and notify writes after the pass.
	SideEffectTimeout time.Duration
}

// RunOnce runs a single pass unless the kill switch is off or another pass
// holds the lock.
func (s *InvestService) RunOnce(ctx context.Context, trigger string) (*bidder.PassResult, error) {
	log := s.logger().With(zap.String("trigger", trigger))

	enabled, err := s.Settings.IsEnabled(ctx, FeatureAutoInvest)
	if err != nil {
		return nil, err
	}
	if !enabled {
		log.Info("auto invest switched off, pass skipped")
		return nil, ErrInvestingDisabled
	}

	if s.Locker == nil || s.Runner == nil {
		return nil, errors.New("invest service is missing its runner or lock")
	}
	release, err := s.Locker.Acquire(ctx)
	if errors.Is(err, lock.ErrHeld) {
		s.Metrics.LockContended()
		log.Info("pass already in flight, trigger skipped")
		return nil, ErrPassInFlight
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(rctx); err != nil {
			log.Warn("pass lock release failed", zap.Error(err))
		}
	}()

	passCtx, cancel := s.passContext(ctx)
	defer cancel()
	res, passErr := s.Runner.RunPass(passCtx)
	if res == nil {
		return nil, passErr
	}
	log = log.With(zap.String("pass_id", res.ID), zap.String("outcome", string(res.Outcome)))
	if passErr != nil {
		log.Error("bidding pass failed", zap.Error(passErr))
	}

	s.Metrics.ObservePass(res)
	s.journal(res, trigger, passErr, log)
	s.notify(res, passErr, log)
	return res, passErr
}

// RunScheduled is the cron entry point. Skips and failures are logged only.
func (s *InvestService) RunScheduled(ctx context.Context) {
	_, err := s.RunOnce(ctx, TriggerCron)
	switch {
	case err == nil, errors.Is(err, ErrPassInFlight), errors.Is(err, ErrInvestingDisabled):
	default:
		s.logger().Warn("scheduled pass ended with error", zap.Error(err))
	}
}

func (s *InvestService) journal(res *bidder.PassResult, trigger string, passErr error, log *zap.Logger) {
	if s.Journal == nil {
		return
	}
	ctx, cancel := s.sideEffectContext()
	defer cancel()
	run, bids := JournalEntry(res, trigger, s.DryRun, passErr)
	if err := s.Journal.InsertPassRun(ctx, run, bids); err != nil {
		log.Warn("pass journal write failed", zap.Error(err))
	}
}

func (s *InvestService) notify(res *bidder.PassResult, passErr error, log *zap.Logger) {
	if s.Notifier == nil {
		return
	}
	payload, ok := notify.ForPass(res, passErr)
	if !ok {
		return
	}
	ctx, cancel := s.sideEffectContext()
	defer cancel()
	if err := s.Notifier.Notify(ctx, payload); err != nil {
		log.Warn("pass notification failed", zap.Error(err))
	}
}

// passContext keeps the caller's values but not its cancellation. Once the
// lock is held a pass ends only on its own or at PassTimeout.
func (s *InvestService) passContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.PassTimeout
	if timeout <= 0 {
		timeout = 4 * time.Minute
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// sideEffectContext is detached from the pass context so a cancelled pass
// still leaves a journal row.
func (s *InvestService) sideEffectContext() (context.Context, context.CancelFunc) {
	timeout := s.SideEffectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (s *InvestService) logger() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// JournalEntry converts a finished pass into journal rows.
func JournalEntry(res *bidder.PassResult, trigger string, dryRun bool, passErr error) (*models.PassRun, []models.PlacedBid) {
	skips, _ := json.Marshal(res.Skips)
	run := &models.PassRun{
		PassID:     res.ID,
		Trigger:    trigger,
		Outcome:    string(res.Outcome),
		DryRun:     dryRun,
		Balance:    res.Balance,
		Committed:  res.Committed(),
		Remaining:  res.Remaining,
		Seen:       res.Seen,
		Eligible:   res.Eligible,
		Qualified:  res.Qualified,
		BidCount:   len(res.Bids),
		Skips:      datatypes.JSON(skips),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if passErr != nil {
		run.Error = passErr.Error()
		var se *bidder.StageError
		if errors.As(passErr, &se) {
			run.Stage = se.Stage
		}
	}
	submitted := res.Outcome == bidder.OutcomeSubmitted
	bids := make([]models.PlacedBid, 0, len(res.Bids))
	for _, b := range res.Bids {
		bids = append(bids, models.PlacedBid{
			PassID:    res.ID,
			AuctionID: b.AuctionID,
			Rank:      b.Rank,
			Amount:    b.Amount,
			MinAmount: b.MinAmount,
			Score:     b.Score,
			Interest:  b.Interest,
			Submitted: submitted,
		})
	}
	return run, bids
}
