package escrow

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"peerlend/loan"
)

// LoanEvent is a decoded lifecycle event emitted by the escrow contract.
// Every event carries the loan id and the status code the loan moved to.
type LoanEvent struct {
	Name   string
	LoanID uint64
	// Party is the indexed counterparty when the event carries one: the
	// lender for LoanCreated/CollateralClaimed, the borrower for
	// LoanAccepted/LoanRepaid. Zero for LoanOverdue.
	Party  common.Address
	Status loan.Status
}

// DecodeLoanEvents extracts the contract's lifecycle events from a mined
// receipt. Logs emitted by other contracts or with unknown signatures are
// ignored.
func (c *Client) DecodeLoanEvents(receipt *gethtypes.Receipt) ([]LoanEvent, error) {
	if receipt == nil {
		return nil, nil
	}
	var events []LoanEvent
	for _, entry := range receipt.Logs {
		if entry == nil || entry.Address != c.address || len(entry.Topics) == 0 {
			continue
		}
		ev, err := c.abi.EventByID(entry.Topics[0])
		if err != nil {
			continue
		}
		if len(entry.Topics) < 2 {
			return nil, fmt.Errorf("escrow: event %s missing loan id topic", ev.Name)
		}
		decoded := LoanEvent{
			Name:   ev.Name,
			LoanID: entry.Topics[1].Big().Uint64(),
		}
		if len(entry.Topics) >= 3 {
			decoded.Party = common.BytesToAddress(entry.Topics[2].Bytes())
		}
		values, err := ev.Inputs.NonIndexed().Unpack(entry.Data)
		if err != nil {
			return nil, fmt.Errorf("escrow: unpack %s: %w", ev.Name, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("escrow: event %s carries no status", ev.Name)
		}
		raw, ok := values[len(values)-1].(uint8)
		if !ok {
			return nil, fmt.Errorf("escrow: event %s status field has unexpected type", ev.Name)
		}
		status := loan.Status(raw)
		if !status.Valid() {
			return nil, fmt.Errorf("escrow: event %s carries invalid status %d", ev.Name, raw)
		}
		decoded.Status = status
		events = append(events, decoded)
	}
	return events, nil
}
