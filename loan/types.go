package loan

import (
	"fmt"
	"math/big"
	"strings"
)

// Profile describes a marketplace participant as served by the off-chain
// backend. The rating and counters are maintained externally in response to
// confirmed settlement events; this package never mutates them.
type Profile struct {
	ID             uint64
	Username       string
	WalletAddress  string
	Rating         float64
	CleanLoans     int
	OverdueLoans   int
	OffersAccepted int
}

// Terms captures the immutable parameters a lender fixes when publishing an
// offer. Amounts are denominated in wei.
type Terms struct {
	Principal    *big.Int
	InterestRate uint64
	Collateral   *big.Int
	Duration     int64
}

// Validate checks the terms against the ranges the escrow contract accepts.
func (t Terms) Validate() error {
	if t.Principal == nil || t.Principal.Sign() <= 0 {
		return fmt.Errorf("loan: principal must be positive")
	}
	if t.InterestRate > 100 {
		return fmt.Errorf("loan: interest rate %d out of range [0,100]", t.InterestRate)
	}
	if t.Collateral == nil || t.Collateral.Sign() <= 0 {
		return fmt.Errorf("loan: collateral must be positive")
	}
	if t.Duration <= 0 {
		return fmt.Errorf("loan: duration must be positive")
	}
	return nil
}

// Loan is one escrow position. The contract assigns the identifier and owns
// Status and DueDate; everything else is fixed at creation. Borrower is the
// empty string until a counterparty accepts the offer.
type Loan struct {
	ID           uint64
	Lender       string
	Borrower     string
	Principal    *big.Int
	InterestRate uint64
	Collateral   *big.Int
	Duration     int64
	DueDate      int64
	Status       Status

	LenderProfile   *Profile
	BorrowerProfile *Profile
}

// Terms returns the immutable terms of the loan.
func (l *Loan) Terms() Terms {
	return Terms{
		Principal:    l.Principal,
		InterestRate: l.InterestRate,
		Collateral:   l.Collateral,
		Duration:     l.Duration,
	}
}

// Clone returns a deep copy so callers can safely mutate the copy without
// affecting the stored instance.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Principal != nil {
		clone.Principal = new(big.Int).Set(l.Principal)
	}
	if l.Collateral != nil {
		clone.Collateral = new(big.Int).Set(l.Collateral)
	}
	if l.LenderProfile != nil {
		p := *l.LenderProfile
		clone.LenderProfile = &p
	}
	if l.BorrowerProfile != nil {
		p := *l.BorrowerProfile
		clone.BorrowerProfile = &p
	}
	return &clone
}

// Sanitize validates the supplied loan against the lifecycle invariants and
// returns a cloned instance with non-nil amount fields. The original value is
// not mutated. Records violating the invariants are rejected at the ingestion
// boundary rather than trusted implicitly.
func Sanitize(l *Loan) (*Loan, error) {
	if l == nil {
		return nil, fmt.Errorf("loan: nil loan")
	}
	clone := l.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("loan %d: invalid status %d", clone.ID, uint8(clone.Status))
	}
	if strings.TrimSpace(clone.Lender) == "" {
		return nil, fmt.Errorf("loan %d: lender required", clone.ID)
	}
	if clone.Principal == nil {
		clone.Principal = big.NewInt(0)
	}
	if clone.Collateral == nil {
		clone.Collateral = big.NewInt(0)
	}
	if clone.Principal.Sign() <= 0 {
		return nil, fmt.Errorf("loan %d: principal must be positive", clone.ID)
	}
	if clone.Collateral.Sign() <= 0 {
		return nil, fmt.Errorf("loan %d: collateral must be positive", clone.ID)
	}
	if clone.InterestRate > 100 {
		return nil, fmt.Errorf("loan %d: interest rate %d out of range", clone.ID, clone.InterestRate)
	}
	if clone.Status == StatusCreated {
		if strings.TrimSpace(clone.Borrower) != "" {
			return nil, fmt.Errorf("loan %d: created loan cannot carry a borrower", clone.ID)
		}
		if clone.DueDate != 0 {
			return nil, fmt.Errorf("loan %d: created loan cannot carry a due date", clone.ID)
		}
	} else if clone.Status != StatusClosed && clone.DueDate <= 0 {
		// Closed is reachable without acceptance when the lender cancels the
		// offer, so only the states that passed through acceptance demand a
		// due date.
		return nil, fmt.Errorf("loan %d: status %s requires a due date", clone.ID, clone.Status)
	}
	return clone, nil
}
