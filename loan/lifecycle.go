package loan

import "time"

// Presented is the lifecycle state shown to a viewer. It may anticipate an
// overdue transition by clock comparison before the contract has confirmed
// it, but it never contradicts a terminal contract status.
type Presented struct {
	State Status
	// SecondsRemaining is the time left until the due date. It is only
	// meaningful while State is StatusAccepted.
	SecondsRemaining int64
}

// Evaluate derives the presented lifecycle state from the contract-confirmed
// status, the absolute due date, and the supplied wall-clock time. The
// function is pure and must be re-evaluated on every read; caching its result
// across time would freeze the overdue reclassification.
func Evaluate(status Status, dueDate int64, now time.Time) Presented {
	switch status {
	case StatusAccepted:
		remaining := dueDate - now.Unix()
		if remaining <= 0 {
			return Presented{State: StatusOverdue}
		}
		return Presented{State: StatusAccepted, SecondsRemaining: remaining}
	default:
		// Created, Repaid, Overdue and Closed present as-is: terminal and
		// pre-acceptance states are independent of the clock, and a
		// contract-confirmed Overdue needs no reclassification.
		return Presented{State: status}
	}
}
