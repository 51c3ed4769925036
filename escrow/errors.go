package escrow

import "errors"

var (
	// ErrLoanNotFound marks an identifier without a loan behind it.
	ErrLoanNotFound = errors.New("escrow: loan not found")
	// ErrReverted marks a call the contract rejected, either during gas
	// estimation against pending state or in the mined receipt.
	ErrReverted = errors.New("escrow: transaction reverted")
	// ErrNoSigner is returned when a state-changing call is attempted
	// without a signer handle.
	ErrNoSigner = errors.New("escrow: signer required")
)
