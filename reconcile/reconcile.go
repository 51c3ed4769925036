package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"peerlend/escrow"
	"peerlend/loan"
)

// LedgerSource supplies the off-chain read model for one viewer.
type LedgerSource interface {
	Profile(ctx context.Context) (*loan.Profile, error)
	MyLoans(ctx context.Context) ([]*loan.Loan, error)
	MyOffers(ctx context.Context) ([]*loan.Loan, error)
	OpenOffers(ctx context.Context) ([]*loan.Loan, error)
}

// ChainSource reads authoritative loan state from the escrow contract.
type ChainSource interface {
	Loan(ctx context.Context, id uint64) (*escrow.LoanState, error)
}

// Snapshot is one consistent view of the read model. It is built in full on
// every refresh and installed wholesale; individual fields are never patched
// in place.
type Snapshot struct {
	Profile *loan.Profile `json:"profile"`
	// Offers buckets the viewer's published offers (lender role).
	Offers loan.OfferBuckets `json:"offers"`
	// Loans buckets the viewer's borrowed loans (borrower role).
	Loans loan.LoanBuckets `json:"loans"`
	// OpenMarket lists every offer currently accepting borrowers.
	OpenMarket  []*loan.Loan `json:"openMarket"`
	RefreshedAt time.Time    `json:"refreshedAt"`
}

// Reconciler owns the cached read model and keeps it consistent with the
// chain. Refreshes run one at a time; a refresh triggered while another is in
// flight joins it instead of racing it.
type Reconciler struct {
	ledger LedgerSource
	chain  ChainSource
	store  Store
	viewer string
	now    func() time.Time
	log    *slog.Logger

	mu      sync.Mutex
	snap    *Snapshot
	pending *refreshCall
}

type refreshCall struct {
	done chan struct{}
	snap *Snapshot
	err  error
}

// ReconcilerOption customises the reconciler instance.
type ReconcilerOption func(*Reconciler)

// WithStore attaches a snapshot store used to warm a fresh session.
func WithStore(store Store) ReconcilerOption {
	return func(r *Reconciler) { r.store = store }
}

// WithViewer names the viewer the snapshots belong to; used as store key.
func WithViewer(viewer string) ReconcilerOption {
	return func(r *Reconciler) { r.viewer = strings.TrimSpace(viewer) }
}

// WithClock sets the function used to timestamp snapshots.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.log = log }
}

// New constructs a reconciler over the two sources.
func New(ledger LedgerSource, chain ChainSource, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		ledger: ledger,
		chain:  chain,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current cached view, or nil before the first refresh.
func (r *Reconciler) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Warm loads the last persisted snapshot, if a store is configured and no
// refresh has happened yet. The warmed view is stale by construction; callers
// still refresh on initial load.
func (r *Reconciler) Warm(ctx context.Context) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap != nil || r.store == nil {
		return r.snap
	}
	snap, err := r.store.Load(ctx, r.viewer)
	if err != nil {
		r.log.Warn("snapshot warm failed", "viewer", r.viewer, "err", err)
		return nil
	}
	r.snap = snap
	return snap
}

// Refresh rebuilds the read model from the authoritative sources and installs
// it wholesale. Concurrent callers coalesce onto the same underlying fetch
// and all receive its result.
func (r *Reconciler) Refresh(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	if r.pending != nil {
		call := r.pending
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.snap, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	r.pending = call
	r.mu.Unlock()

	snap, err := r.fetch(ctx)

	r.mu.Lock()
	r.pending = nil
	if err == nil {
		r.snap = snap
	}
	r.mu.Unlock()

	if err == nil && r.store != nil {
		if saveErr := r.store.Save(ctx, r.viewer, snap); saveErr != nil {
			r.log.Warn("snapshot save failed", "viewer", r.viewer, "err", saveErr)
		}
	}

	call.snap, call.err = snap, err
	close(call.done)
	return snap, err
}

func (r *Reconciler) fetch(ctx context.Context) (*Snapshot, error) {
	profile, err := r.ledger.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: fetch profile: %w", err)
	}
	myLoans, err := r.ledger.MyLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: fetch loans: %w", err)
	}
	myOffers, err := r.ledger.MyOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: fetch offers: %w", err)
	}
	openOffers, err := r.ledger.OpenOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: fetch open offers: %w", err)
	}

	myLoans = r.overlayChain(ctx, myLoans)
	myOffers = r.overlayChain(ctx, myOffers)
	openOffers = r.overlayChain(ctx, openOffers)

	return &Snapshot{
		Profile:     profile,
		Offers:      loan.PartitionOffers(myOffers),
		Loans:       loan.PartitionLoans(myLoans),
		OpenMarket:  openOffers,
		RefreshedAt: r.now(),
	}, nil
}

// overlayChain re-reads each non-terminal loan from the contract and lets the
// confirmed status win over the off-chain copy. Chain read failures leave the
// ledger copy in place; the disagreement is transient and the next refresh
// retries.
func (r *Reconciler) overlayChain(ctx context.Context, loans []*loan.Loan) []*loan.Loan {
	if r.chain == nil {
		return loans
	}
	out := make([]*loan.Loan, 0, len(loans))
	for _, l := range loans {
		if l == nil {
			continue
		}
		if l.Status.Terminal() {
			out = append(out, l)
			continue
		}
		state, err := r.chain.Loan(ctx, l.ID)
		if err != nil {
			r.log.Warn("chain lookup failed, keeping ledger copy", "loan", l.ID, "err", err)
			out = append(out, l)
			continue
		}
		merged := l.Clone()
		merged.Status = state.Status
		merged.DueDate = state.DueDate
		if merged.Borrower == "" && (state.Borrower != common.Address{}) {
			merged.Borrower = state.Borrower.Hex()
		}
		out = append(out, merged)
	}
	return out
}
