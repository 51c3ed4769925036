package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"peerlend/loan"
)

// Wire payloads mirror the backend's JSON as served, including the
// misspelled adress_wallet field the API actually uses. All fields are
// validated before anything crosses into the domain types.

type profilePayload struct {
	ID             uint64  `json:"id"`
	Username       string  `json:"username"`
	Rating         float64 `json:"rating"`
	WalletAddress  string  `json:"adress_wallet"`
	CleanLoans     int     `json:"clean_loans"`
	OverdueLoans   int     `json:"overdue_loans"`
	OffersAccepted int     `json:"offers_accepted"`
}

func (p *profilePayload) toProfile() (*loan.Profile, error) {
	if p == nil {
		return nil, fmt.Errorf("ledger: missing profile")
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("ledger: profile without id")
	}
	return &loan.Profile{
		ID:             p.ID,
		Username:       strings.TrimSpace(p.Username),
		WalletAddress:  strings.TrimSpace(p.WalletAddress),
		Rating:         p.Rating,
		CleanLoans:     p.CleanLoans,
		OverdueLoans:   p.OverdueLoans,
		OffersAccepted: p.OffersAccepted,
	}, nil
}

type loanPayload struct {
	ID         uint64          `json:"id"`
	LenderID   string          `json:"lender_id"`
	BorrowerID string          `json:"borrower_id"`
	Amount     json.Number     `json:"amount"`
	Interest   json.Number     `json:"interest"`
	Collateral json.Number     `json:"collateral"`
	DueDate    int64           `json:"due_date"`
	Status     string          `json:"status"`
	Duration   int64           `json:"duration"`
	Lender     *profilePayload `json:"lender,omitempty"`
	Borrower   *profilePayload `json:"borrower,omitempty"`
}

func (p *loanPayload) toLoan() (*loan.Loan, error) {
	status, err := loan.ParseStatus(p.Status)
	if err != nil {
		return nil, fmt.Errorf("ledger: loan %d: %w", p.ID, err)
	}
	principal, err := bigFromNumber(p.Amount)
	if err != nil {
		return nil, fmt.Errorf("ledger: loan %d amount: %w", p.ID, err)
	}
	collateral, err := bigFromNumber(p.Collateral)
	if err != nil {
		return nil, fmt.Errorf("ledger: loan %d collateral: %w", p.ID, err)
	}
	interest, err := bigFromNumber(p.Interest)
	if err != nil {
		return nil, fmt.Errorf("ledger: loan %d interest: %w", p.ID, err)
	}
	if !interest.IsUint64() {
		return nil, fmt.Errorf("ledger: loan %d interest out of range", p.ID)
	}

	l := &loan.Loan{
		ID:           p.ID,
		Lender:       strings.TrimSpace(p.LenderID),
		Borrower:     strings.TrimSpace(p.BorrowerID),
		Principal:    principal,
		InterestRate: interest.Uint64(),
		Collateral:   collateral,
		Duration:     p.Duration,
		DueDate:      p.DueDate,
		Status:       status,
	}
	if p.Lender != nil {
		profile, err := p.Lender.toProfile()
		if err != nil {
			return nil, fmt.Errorf("ledger: loan %d lender: %w", p.ID, err)
		}
		l.LenderProfile = profile
	}
	if p.Borrower != nil {
		profile, err := p.Borrower.toProfile()
		if err != nil {
			return nil, fmt.Errorf("ledger: loan %d borrower: %w", p.ID, err)
		}
		l.BorrowerProfile = profile
	}
	return loan.Sanitize(l)
}

func bigFromNumber(n json.Number) (*big.Int, error) {
	text := strings.TrimSpace(n.String())
	if text == "" {
		return nil, fmt.Errorf("missing value")
	}
	value, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("not an integer: %q", text)
	}
	return value, nil
}
