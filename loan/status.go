package loan

import (
	"fmt"
	"strings"
)

// Status enumerates the lifecycle states persisted by the escrow contract.
// The numeric values mirror the on-chain status codes and must not be
// reordered.
type Status uint8

const (
	StatusCreated Status = iota
	StatusAccepted
	StatusRepaid
	StatusOverdue
	StatusClosed
)

var statusNames = [...]string{"Created", "Accepted", "Repaid", "Overdue", "Closed"}

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusClosed
}

// Terminal reports whether the loan has been settled and accepts no further
// lifecycle transitions.
func (s Status) Terminal() bool {
	return s == StatusRepaid || s == StatusClosed
}

// Active reports whether the loan sits inside the settlement window, i.e. the
// borrower still owes repayment or the lender may claim collateral.
func (s Status) Active() bool {
	return s == StatusAccepted || s == StatusOverdue
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
	return statusNames[s]
}

// ParseStatus maps a status label served by the off-chain backend to its
// enumeration value. Labels are trimmed before matching because the backend
// has been observed to pad them.
func ParseStatus(label string) (Status, error) {
	trimmed := strings.TrimSpace(label)
	for i, name := range statusNames {
		if trimmed == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("loan: unknown status label %q", label)
}
