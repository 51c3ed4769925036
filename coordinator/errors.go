package coordinator

import "errors"

// Every surfaced error maps to an actionable category: fix the input
// (ErrValidation, ErrPrecondition), connect a wallet
// (ErrSigningUnavailable), the chain said no (ErrTransactionReverted),
// outcome unknown until the next refresh (ErrConfirmationTimeout), or the
// transaction landed but the cache is stale (ErrReconciliation).
var (
	ErrValidation          = errors.New("coordinator: invalid terms")
	ErrPrecondition        = errors.New("coordinator: action not allowed in current state")
	ErrSigningUnavailable  = errors.New("coordinator: no signer available")
	ErrTransactionReverted = errors.New("coordinator: transaction reverted")
	ErrConfirmationTimeout = errors.New("coordinator: confirmation not observed in time")
	ErrReconciliation      = errors.New("coordinator: read model refresh failed")
	// ErrActionInFlight rejects a second settlement action while one is
	// still confirming. One in-flight action per client session.
	ErrActionInFlight = errors.New("coordinator: another action is in flight")
)
