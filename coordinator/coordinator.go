package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"peerlend/escrow"
	"peerlend/loan"
	"peerlend/observability"
	"peerlend/reconcile"
)

// EscrowClient is the contract surface the coordinator drives.
// *escrow.Client satisfies it.
type EscrowClient interface {
	CreateLoan(ctx context.Context, signer escrow.Signer, terms loan.Terms) (common.Hash, error)
	AcceptLoan(ctx context.Context, signer escrow.Signer, id uint64, collateral *big.Int) (common.Hash, error)
	RepayLoan(ctx context.Context, signer escrow.Signer, id uint64, payment *big.Int) (common.Hash, error)
	ClaimCollateral(ctx context.Context, signer escrow.Signer, id uint64) (common.Hash, error)
	CancelLoan(ctx context.Context, signer escrow.Signer, id uint64) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Refresher triggers a reconciliation of the cached read model.
// *reconcile.Reconciler satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (*reconcile.Snapshot, error)
}

// Coordinator turns viewer actions into exactly one contract call each,
// enforces the lifecycle preconditions before anything leaves the process,
// tracks the transaction to confirmation, and reconciles the read model
// afterwards. State transitions are only ever reflected after the chain
// confirms them; failures and timeouts leave the cached state untouched.
type Coordinator struct {
	escrow    EscrowClient
	refresher Refresher
	signer    escrow.Signer
	viewer    string

	confirmTimeout time.Duration
	now            func() time.Time
	metrics        *observability.CoordinatorMetrics
	log            *slog.Logger

	mu   sync.Mutex
	busy bool
}

// Option customises the coordinator instance.
type Option func(*Coordinator)

// WithConfirmTimeout bounds the confirmation wait per action.
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.confirmTimeout = d }
}

// WithClock sets the function used for presented-state checks.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithMetrics overrides the default metrics registry.
func WithMetrics(m *observability.CoordinatorMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// New constructs a coordinator acting for the given viewer wallet address.
// The signer may be nil when no wallet is connected; every settlement action
// will then fail fast with ErrSigningUnavailable.
func New(escrowClient EscrowClient, refresher Refresher, signer escrow.Signer, viewerAddr string, opts ...Option) *Coordinator {
	c := &Coordinator{
		escrow:         escrowClient,
		refresher:      refresher,
		signer:         signer,
		viewer:         strings.TrimSpace(viewerAddr),
		confirmTimeout: 90 * time.Second,
		now:            time.Now,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateOffer publishes a new offer, escrowing the principal.
func (c *Coordinator) CreateOffer(ctx context.Context, terms loan.Terms) error {
	if err := terms.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return c.run(ctx, "create_offer", func(ctx context.Context) (common.Hash, error) {
		return c.escrow.CreateLoan(ctx, c.signer, terms)
	})
}

// AcceptOffer commits the viewer as borrower on an open offer, escrowing the
// collateral. The due date is fixed on-chain at acceptance time.
func (c *Coordinator) AcceptOffer(ctx context.Context, l *loan.Loan) error {
	if err := c.requireLoan(l, loan.StatusCreated); err != nil {
		return err
	}
	if c.isViewer(l.Lender) {
		return fmt.Errorf("%w: cannot accept own offer", ErrPrecondition)
	}
	return c.run(ctx, "accept_offer", func(ctx context.Context) (common.Hash, error) {
		return c.escrow.AcceptLoan(ctx, c.signer, l.ID, l.Collateral)
	})
}

// RepayLoan settles the viewer's debt, transmitting principal plus interest.
// Repayment stays possible while the loan is overdue, up until the lender
// claims the collateral.
func (c *Coordinator) RepayLoan(ctx context.Context, l *loan.Loan) error {
	if l == nil {
		return fmt.Errorf("%w: no loan", ErrPrecondition)
	}
	if !c.isViewer(l.Borrower) {
		return fmt.Errorf("%w: only the borrower repays", ErrPrecondition)
	}
	payment, err := loan.RepaymentDue(l)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	return c.run(ctx, "repay_loan", func(ctx context.Context) (common.Hash, error) {
		return c.escrow.RepayLoan(ctx, c.signer, l.ID, payment)
	})
}

// ClaimCollateral forfeits the borrower's collateral to the viewer. The
// check runs against the presented state, so a loan past its due date is
// claimable even before the contract has marked it overdue; the contract
// re-checks the clock itself.
func (c *Coordinator) ClaimCollateral(ctx context.Context, l *loan.Loan) error {
	if l == nil {
		return fmt.Errorf("%w: no loan", ErrPrecondition)
	}
	if !c.isViewer(l.Lender) {
		return fmt.Errorf("%w: only the lender claims collateral", ErrPrecondition)
	}
	presented := loan.Evaluate(l.Status, l.DueDate, c.now())
	if presented.State != loan.StatusOverdue {
		return fmt.Errorf("%w: loan %d is %s", ErrPrecondition, l.ID, presented.State)
	}
	return c.run(ctx, "claim_collateral", func(ctx context.Context) (common.Hash, error) {
		return c.escrow.ClaimCollateral(ctx, c.signer, l.ID)
	})
}

// CancelOffer retires an offer nobody has accepted yet.
func (c *Coordinator) CancelOffer(ctx context.Context, l *loan.Loan) error {
	if err := c.requireLoan(l, loan.StatusCreated); err != nil {
		return err
	}
	if !c.isViewer(l.Lender) {
		return fmt.Errorf("%w: only the lender cancels an offer", ErrPrecondition)
	}
	return c.run(ctx, "cancel_offer", func(ctx context.Context) (common.Hash, error) {
		return c.escrow.CancelLoan(ctx, c.signer, l.ID)
	})
}

func (c *Coordinator) requireLoan(l *loan.Loan, status loan.Status) error {
	if l == nil {
		return fmt.Errorf("%w: no loan", ErrPrecondition)
	}
	if l.Status != status {
		return fmt.Errorf("%w: loan %d is %s, want %s", ErrPrecondition, l.ID, l.Status, status)
	}
	return nil
}

func (c *Coordinator) isViewer(addr string) bool {
	return c.viewer != "" && strings.EqualFold(strings.TrimSpace(addr), c.viewer)
}

// run executes one settlement action end to end: submit, wait for
// confirmation, reconcile. The submitted transaction is never assumed
// successful; only a confirmed receipt advances anything.
func (c *Coordinator) run(ctx context.Context, action string, submit func(context.Context) (common.Hash, error)) error {
	if !c.begin() {
		c.record(action, "in_flight")
		return ErrActionInFlight
	}
	defer c.end()

	if c.signer == nil {
		c.record(action, "no_signer")
		return ErrSigningUnavailable
	}

	actionID := uuid.NewString()
	log := c.log.With("action", action, "action_id", actionID, "viewer", c.viewer)

	hash, err := submit(ctx)
	if err != nil {
		if errors.Is(err, escrow.ErrReverted) {
			c.record(action, "reverted")
			log.Warn("submission rejected by contract", "err", err)
			return fmt.Errorf("%w: %v", ErrTransactionReverted, err)
		}
		c.record(action, "submit_error")
		log.Error("submission failed", "err", err)
		return err
	}
	log = log.With("tx", hash.Hex())
	log.Info("transaction submitted")

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	start := c.now()
	_, err = c.escrow.WaitMined(waitCtx, hash)
	c.observeConfirmation(action, c.now().Sub(start))
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			// Outcome indeterminate: the transaction may still land. Pull
			// authoritative state so the eventual outcome becomes visible,
			// and report neither success nor failure.
			c.record(action, "timeout")
			log.Warn("confirmation wait timed out, forcing reconciliation")
			c.forceRefresh(ctx)
			return fmt.Errorf("%w: tx %s", ErrConfirmationTimeout, hash.Hex())
		case errors.Is(err, escrow.ErrReverted):
			c.record(action, "reverted")
			log.Warn("transaction reverted", "err", err)
			return fmt.Errorf("%w: %v", ErrTransactionReverted, err)
		default:
			c.record(action, "wait_error")
			log.Error("confirmation wait failed", "err", err)
			return err
		}
	}
	log.Info("transaction confirmed")

	if _, err := c.refresher.Refresh(ctx); err != nil {
		c.record(action, "reconcile_error")
		c.recordRefresh("post_transaction", "error")
		log.Error("post-transaction refresh failed", "err", err)
		return fmt.Errorf("%w: %v", ErrReconciliation, err)
	}
	c.record(action, "ok")
	c.recordRefresh("post_transaction", "ok")
	return nil
}

// forceRefresh runs a best-effort reconciliation detached from the action's
// deadline, so a timed-out action still leaves a path to the true outcome.
func (c *Coordinator) forceRefresh(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 30*time.Second)
	defer cancel()
	if _, err := c.refresher.Refresh(ctx); err != nil {
		c.recordRefresh("forced", "error")
		c.log.Warn("forced reconciliation failed", "err", err)
		return
	}
	c.recordRefresh("forced", "ok")
}

func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Coordinator) record(action, outcome string) {
	c.metrics.RecordAction(action, outcome)
}

func (c *Coordinator) recordRefresh(trigger, outcome string) {
	c.metrics.RecordRefresh(trigger, outcome)
}

func (c *Coordinator) observeConfirmation(action string, d time.Duration) {
	c.metrics.ObserveConfirmation(action, d)
}
