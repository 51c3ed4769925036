package reconcile

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"peerlend/escrow"
	"peerlend/loan"
)

type fakeLedger struct {
	mu       sync.Mutex
	profile  *loan.Profile
	myLoans  []*loan.Loan
	myOffers []*loan.Loan
	market   []*loan.Loan
	fetches  atomic.Int64
	gate     chan struct{}
	err      error
}

func (f *fakeLedger) Profile(ctx context.Context) (*loan.Profile, error) {
	f.fetches.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, nil
}

func (f *fakeLedger) MyLoans(context.Context) ([]*loan.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.myLoans, nil
}

func (f *fakeLedger) MyOffers(context.Context) ([]*loan.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.myOffers, nil
}

func (f *fakeLedger) OpenOffers(context.Context) ([]*loan.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.market, nil
}

type fakeChain struct {
	states map[uint64]*escrow.LoanState
	err    error
}

func (f *fakeChain) Loan(_ context.Context, id uint64) (*escrow.LoanState, error) {
	if f.err != nil {
		return nil, f.err
	}
	state, ok := f.states[id]
	if !ok {
		return nil, escrow.ErrLoanNotFound
	}
	return state, nil
}

func testLoan(id uint64, status loan.Status) *loan.Loan {
	l := &loan.Loan{
		ID:           id,
		Lender:       "0xlender",
		Principal:    big.NewInt(10_000),
		InterestRate: 5,
		Collateral:   big.NewInt(2_000),
		Duration:     600,
		Status:       status,
	}
	if status != loan.StatusCreated {
		l.Borrower = "0xborrower"
		l.DueDate = 600
	}
	return l
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestRefreshBuildsBuckets(t *testing.T) {
	ledger := &fakeLedger{
		profile:  &loan.Profile{ID: 4, Username: "ada"},
		myLoans:  []*loan.Loan{testLoan(1, loan.StatusAccepted), testLoan(2, loan.StatusRepaid)},
		myOffers: []*loan.Loan{testLoan(3, loan.StatusCreated), testLoan(4, loan.StatusOverdue)},
		market:   []*loan.Loan{testLoan(5, loan.StatusCreated)},
	}
	r := New(ledger, nil, WithClock(fixedClock(1_000)))

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ada", snap.Profile.Username)
	require.Len(t, snap.Loans.Open, 1)
	require.Len(t, snap.Loans.Closed, 1)
	require.Len(t, snap.Offers.Created, 1)
	require.Len(t, snap.Offers.Open, 1)
	require.Len(t, snap.OpenMarket, 1)
	require.Equal(t, time.Unix(1_000, 0), snap.RefreshedAt)
	require.Same(t, snap, r.Snapshot())
}

func TestContractStatusWins(t *testing.T) {
	borrower := common.HexToAddress("0x02")
	ledger := &fakeLedger{
		profile: &loan.Profile{ID: 4},
		myOffers: []*loan.Loan{
			testLoan(1, loan.StatusAccepted), // chain already saw repayment
			testLoan(2, loan.StatusCreated),  // chain already saw acceptance
		},
	}
	chain := &fakeChain{states: map[uint64]*escrow.LoanState{
		1: {ID: 1, Status: loan.StatusRepaid, DueDate: 600},
		2: {ID: 2, Status: loan.StatusAccepted, DueDate: 900, Borrower: borrower},
	}}
	r := New(ledger, chain, WithClock(fixedClock(1_000)))

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Offers.Closed, 1)
	require.Equal(t, loan.StatusRepaid, snap.Offers.Closed[0].Status)
	require.Len(t, snap.Offers.Open, 1)
	open := snap.Offers.Open[0]
	require.Equal(t, loan.StatusAccepted, open.Status)
	require.Equal(t, int64(900), open.DueDate)
	require.Equal(t, borrower.Hex(), open.Borrower)
}

func TestChainFailureKeepsLedgerCopy(t *testing.T) {
	ledger := &fakeLedger{
		profile:  &loan.Profile{ID: 4},
		myOffers: []*loan.Loan{testLoan(1, loan.StatusAccepted)},
	}
	chain := &fakeChain{err: errors.New("rpc down")}
	r := New(ledger, chain, WithClock(fixedClock(1_000)))

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Offers.Open, 1)
	require.Equal(t, loan.StatusAccepted, snap.Offers.Open[0].Status)
}

func TestRefreshReplacesWholesale(t *testing.T) {
	ledger := &fakeLedger{
		profile:  &loan.Profile{ID: 4},
		myOffers: []*loan.Loan{testLoan(1, loan.StatusCreated), testLoan(2, loan.StatusCreated)},
	}
	r := New(ledger, nil, WithClock(fixedClock(1_000)))
	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Offers.Created, 2)

	ledger.mu.Lock()
	ledger.myOffers = []*loan.Loan{testLoan(2, loan.StatusCreated)}
	ledger.mu.Unlock()

	snap, err = r.Refresh(context.Background())
	require.NoError(t, err)
	// The removed offer is gone entirely, not merged into the old view.
	require.Len(t, snap.Offers.Created, 1)
	require.Equal(t, uint64(2), snap.Offers.Created[0].ID)
}

func TestRefreshFailureLeavesCacheUntouched(t *testing.T) {
	ledger := &fakeLedger{
		profile:  &loan.Profile{ID: 4},
		myOffers: []*loan.Loan{testLoan(1, loan.StatusCreated)},
	}
	r := New(ledger, nil, WithClock(fixedClock(1_000)))
	first, err := r.Refresh(context.Background())
	require.NoError(t, err)

	ledger.err = errors.New("backend down")
	_, err = r.Refresh(context.Background())
	require.Error(t, err)
	require.Same(t, first, r.Snapshot())
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	ledger := &fakeLedger{
		profile: &loan.Profile{ID: 4},
		gate:    make(chan struct{}),
	}
	r := New(ledger, nil, WithClock(fixedClock(1_000)))

	const callers = 4
	results := make(chan *Snapshot, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := r.Refresh(context.Background())
			require.NoError(t, err)
			results <- snap
		}()
	}

	// Let the goroutines pile up behind the gated fetch, then release it.
	time.Sleep(20 * time.Millisecond)
	close(ledger.gate)
	wg.Wait()
	close(results)

	var first *Snapshot
	for snap := range results {
		if first == nil {
			first = snap
		}
		require.Same(t, first, snap)
	}
	// All callers shared one underlying fetch.
	require.Equal(t, int64(1), ledger.fetches.Load())
}
