package loan

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidState is returned when a settlement amount is requested for a
// loan outside the Accepted/Overdue window, where the figures are
// meaningless.
var ErrInvalidState = errors.New("loan: settlement outside the active window")

// RepaymentDue returns the amount the borrower must transmit to settle the
// loan: principal plus floor interest.
func RepaymentDue(l *Loan) (*big.Int, error) {
	if err := settlementGuard(l); err != nil {
		return nil, err
	}
	return ComputeRepayment(l.Principal, l.InterestRate), nil
}

// Forfeiture returns the collateral amount the lender claims on a defaulted
// loan.
func Forfeiture(l *Loan) (*big.Int, error) {
	if err := settlementGuard(l); err != nil {
		return nil, err
	}
	return new(big.Int).Set(l.Collateral), nil
}

func settlementGuard(l *Loan) error {
	if l == nil {
		return fmt.Errorf("%w: nil loan", ErrInvalidState)
	}
	if !l.Status.Active() {
		return fmt.Errorf("%w: loan %d is %s", ErrInvalidState, l.ID, l.Status)
	}
	return nil
}
