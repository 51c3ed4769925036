package overdued

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"peerlend/escrow"
	"peerlend/loan"
	"peerlend/observability"
)

// ChainScanner is the contract surface the watcher needs. *escrow.Client
// satisfies it.
type ChainScanner interface {
	Loan(ctx context.Context, id uint64) (*escrow.LoanState, error)
	BatchCheckOverdue(ctx context.Context, signer escrow.Signer, ids []uint64) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Watcher periodically scans the contract's loan table and asks it to flag
// matured loans that nobody has repaid.
type Watcher struct {
	chain      ChainScanner
	signer     escrow.Signer
	batchLimit int
	missStreak int
	now        func() time.Time
	metrics    *observability.OverdueMetrics
	log        *slog.Logger
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithClock overrides the wall clock used to judge maturity.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) { w.now = now }
}

// WithMetrics attaches sweep counters.
func WithMetrics(m *observability.OverdueMetrics) WatcherOption {
	return func(w *Watcher) { w.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log }
}

// NewWatcher builds a watcher over the given contract client.
func NewWatcher(chain ChainScanner, signer escrow.Signer, batchLimit, missStreak int, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		chain:      chain,
		signer:     signer,
		batchLimit: batchLimit,
		missStreak: missStreak,
		now:        time.Now,
		log:        slog.Default(),
	}
	if w.batchLimit <= 0 {
		w.batchLimit = 50
	}
	if w.missStreak <= 0 {
		w.missStreak = 3
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run sweeps on the given cadence until the context is cancelled. The first
// sweep runs immediately.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := w.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep scans for matured loans and submits one flagging batch when any are
// found. Loans beyond the batch limit are picked up by the next sweep.
func (w *Watcher) Sweep(ctx context.Context) error {
	due, err := w.collect(ctx)
	if err != nil {
		w.metrics.RecordSweep("scan_error", 0)
		return err
	}
	if len(due) == 0 {
		w.metrics.RecordSweep("empty", 0)
		return nil
	}
	if len(due) > w.batchLimit {
		due = due[:w.batchLimit]
	}

	txHash, err := w.chain.BatchCheckOverdue(ctx, w.signer, due)
	if err != nil {
		w.metrics.RecordSweep("submit_error", 0)
		return fmt.Errorf("submit overdue batch: %w", err)
	}
	receipt, err := w.chain.WaitMined(ctx, txHash)
	if err != nil {
		w.metrics.RecordSweep("confirm_error", 0)
		return fmt.Errorf("confirm overdue batch: %w", err)
	}
	w.metrics.RecordSweep("flagged", len(due))
	w.log.Info("flagged overdue loans",
		"count", len(due),
		"tx", txHash.Hex(),
		"block", receipt.BlockNumber)
	return nil
}

// collect walks loan ids upward from 1 until a run of consecutive empty
// slots signals the end of the table. Loan ids are assigned sequentially by
// the contract, so gaps only appear transiently while a creation is pending.
func (w *Watcher) collect(ctx context.Context) ([]uint64, error) {
	var (
		due    []uint64
		misses int
	)
	now := w.now().Unix()
	for id := uint64(1); misses < w.missStreak; id++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state, err := w.chain.Loan(ctx, id)
		if errors.Is(err, escrow.ErrLoanNotFound) {
			misses++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read loan %d: %w", id, err)
		}
		misses = 0
		if state.Status == loan.StatusAccepted && now >= state.DueDate {
			due = append(due, id)
		}
	}
	return due, nil
}
