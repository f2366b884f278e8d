package bidder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Scorer maps a batch of auctions to one attractiveness signal each.
type Scorer interface {
	Score(ctx context.Context, auctions []Auction) ([]float64, error)
}

// Marketplace supplies the snapshot a pass evaluates.
type Marketplace interface {
	AccountBalance(ctx context.Context) (decimal.Decimal, error)
	OpenAuctions(ctx context.Context) ([]Auction, error)
}

// Submitter places bids. It is called at most once per pass.
type Submitter interface {
	SubmitBids(ctx context.Context, bids []Bid) error
}

type Outcome string

const (
	OutcomeSubmitted         Outcome = "submitted"
	OutcomeNoBids            Outcome = "no_bids"
	OutcomeInsufficientFunds Outcome = "insufficient_funds"
	OutcomeDryRun            Outcome = "dry_run"
	OutcomeFailed            Outcome = "failed"
)

const (
	StageConfig   = "config"
	StageBalance  = "balance"
	StageAuctions = "auctions"
	StageEvaluate = "evaluate"
	StageScore    = "score"
	StageSubmit   = "submit"
)

// StageError tells the caller which step of a pass failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Plan is the result of evaluating one snapshot. It performs no I/O besides
// the single scorer call.
type Plan struct {
	Outcome   Outcome
	Balance   decimal.Decimal
	Seen      int
	Eligible  int
	Qualified int
	Bids      []Bid
	Remaining decimal.Decimal
	Skips     []Skip
}

// Evaluate runs filter, rank and allocate over one balance and auction
// snapshot. A balance below the minimum investment returns before the scorer
// is called.
func Evaluate(ctx context.Context, balance decimal.Decimal, auctions []Auction, scorer Scorer, cfg Config) (Plan, error) {
	plan := Plan{Balance: balance, Remaining: balance, Seen: len(auctions)}
	if err := cfg.Validate(); err != nil {
		return plan, &StageError{Stage: StageConfig, Err: err}
	}
	if balance.IsNegative() {
		return plan, &StageError{Stage: StageEvaluate, Err: fmt.Errorf("%w: negative balance %s", ErrMalformedInput, balance)}
	}
	if balance.LessThan(cfg.Limits.MinInvestment) {
		plan.Outcome = OutcomeInsufficientFunds
		return plan, nil
	}
	if err := ValidateAuctions(auctions); err != nil {
		return plan, &StageError{Stage: StageEvaluate, Err: err}
	}

	eligible := WithoutPriorBids(auctions)
	plan.Eligible = len(eligible)
	if len(eligible) == 0 {
		plan.Outcome = OutcomeNoBids
		return plan, nil
	}
	if scorer == nil {
		return plan, &StageError{Stage: StageScore, Err: fmt.Errorf("%w: no scorer", ErrInvalidConfig)}
	}
	scores, err := scorer.Score(ctx, eligible)
	if err != nil {
		return plan, &StageError{Stage: StageScore, Err: err}
	}
	attractive, err := Filter(eligible, scores, cfg.Thresholds)
	if err != nil {
		return plan, &StageError{Stage: StageScore, Err: err}
	}
	plan.Qualified = len(attractive)

	alloc := Allocate(balance, Rank(attractive, cfg.Thresholds.Mode), cfg.Limits)
	plan.Bids = alloc.Bids
	plan.Remaining = alloc.Remaining
	plan.Skips = alloc.Skips
	if len(plan.Bids) == 0 {
		plan.Outcome = OutcomeNoBids
	}
	return plan, nil
}

// PassResult describes one finished pass, successful or not.
type PassResult struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Plan
}

// Committed is the total amount across the pass's bids.
func (r *PassResult) Committed() decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return Allocation{Bids: r.Bids}.Committed()
}

// Runner sequences a pass against live collaborators. It keeps no state
// between passes.
type Runner struct {
	Market    Marketplace
	Scorer    Scorer
	Submitter Submitter
	Config    Config
	DryRun    bool
	Logger    *zap.Logger
}

// RunPass fetches the balance, and only when it covers a minimum bid, the
// open auctions; evaluates them; and submits the bids once. On error the
// returned result is still populated for reporting but nothing further is
// submitted.
func (r *Runner) RunPass(ctx context.Context) (*PassResult, error) {
	res := &PassResult{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	res.Outcome = OutcomeFailed
	defer func() { res.FinishedAt = time.Now().UTC() }()

	log := r.logger().With(zap.String("pass_id", res.ID))
	if err := r.Config.Validate(); err != nil {
		return res, &StageError{Stage: StageConfig, Err: err}
	}
	if r.Market == nil {
		return res, &StageError{Stage: StageConfig, Err: fmt.Errorf("%w: no marketplace", ErrInvalidConfig)}
	}

	lim := r.Config.Limits
	log.Info("bidding pass started",
		zap.String("min_investment", lim.MinInvestment.String()),
		zap.String("max_investment", lim.MaxInvestment.String()),
		zap.String("mode", string(r.Config.Thresholds.Mode)),
		zap.Bool("dry_run", r.DryRun),
	)

	balance, err := r.Market.AccountBalance(ctx)
	if err != nil {
		return res, &StageError{Stage: StageBalance, Err: err}
	}
	res.Balance = balance
	res.Remaining = balance
	log.Info("available balance before bidding", zap.String("balance", balance.StringFixed(2)))
	if balance.IsNegative() {
		return res, &StageError{Stage: StageBalance, Err: fmt.Errorf("%w: negative balance %s", ErrMalformedInput, balance)}
	}
	if balance.LessThan(lim.MinInvestment) {
		res.Outcome = OutcomeInsufficientFunds
		log.Info("insufficient funds for bidding", zap.String("balance", balance.StringFixed(2)))
		return res, nil
	}

	auctions, err := r.Market.OpenAuctions(ctx)
	if err != nil {
		return res, &StageError{Stage: StageAuctions, Err: err}
	}
	res.Seen = len(auctions)

	plan, err := Evaluate(ctx, balance, auctions, r.Scorer, r.Config)
	if err != nil {
		res.Eligible = plan.Eligible
		return res, err
	}
	res.Plan = plan
	log.Info("attractive auctions found",
		zap.Int("seen", plan.Seen),
		zap.Int("eligible", plan.Eligible),
		zap.Int("qualified", plan.Qualified),
	)

	if len(plan.Bids) == 0 {
		res.Outcome = OutcomeNoBids
		log.Info("no bids to place", zap.Int("skipped", len(plan.Skips)))
		return res, nil
	}
	if r.DryRun {
		res.Outcome = OutcomeDryRun
		log.Info("dry run: bids not submitted",
			zap.Int("bids", len(plan.Bids)),
			zap.String("committed", res.Committed().StringFixed(2)),
			zap.String("balance_after", plan.Remaining.StringFixed(2)),
		)
		return res, nil
	}
	if r.Submitter == nil {
		res.Outcome = OutcomeFailed
		return res, &StageError{Stage: StageSubmit, Err: fmt.Errorf("%w: no submitter", ErrInvalidConfig)}
	}
	if err := r.Submitter.SubmitBids(ctx, plan.Bids); err != nil {
		res.Outcome = OutcomeFailed
		return res, &StageError{Stage: StageSubmit, Err: err}
	}
	res.Outcome = OutcomeSubmitted
	log.Info("bids submitted",
		zap.Int("bids", len(plan.Bids)),
		zap.String("committed", res.Committed().StringFixed(2)),
		zap.String("balance_after", plan.Remaining.StringFixed(2)),
	)
	return res, nil
}

func (r *Runner) logger() *zap.Logger {
	if r == nil || r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
