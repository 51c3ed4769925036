package loan

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Monetary values are big integers in wei throughout the module. Decimal
// conversion happens only at the presentation boundary and never feeds back
// into stored or transmitted amounts.

const (
	weiDecimals   = 18
	displayDigits = 9
)

var rateDivisor = big.NewInt(100)

// ComputeInterest returns floor(principal * ratePercent / 100). Integer
// division always rounds down, favouring the payer.
func ComputeInterest(principal *big.Int, ratePercent uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || ratePercent == 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(principal, new(big.Int).SetUint64(ratePercent))
	return interest.Quo(interest, rateDivisor)
}

// ComputeRepayment returns principal plus the interest owed on it.
func ComputeRepayment(principal *big.Int, ratePercent uint64) *big.Int {
	if principal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(principal, ComputeInterest(principal, ratePercent))
}

// FormatEther renders a wei amount as a fixed nine-fraction-digit ether
// string for display.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		wei = big.NewInt(0)
	}
	return decimal.NewFromBigInt(wei, -weiDecimals).StringFixed(displayDigits)
}

// ParseEther converts a user-supplied ether amount to wei. A decimal comma is
// accepted as separator. Amounts with more precision than wei are rejected
// rather than silently rounded.
func ParseEther(text string) (*big.Int, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	if cleaned == "" {
		return nil, fmt.Errorf("loan: empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("loan: parse amount %q: %w", text, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("loan: amount must not be negative")
	}
	shifted := d.Shift(weiDecimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("loan: amount %q is finer than one wei", text)
	}
	return shifted.BigInt(), nil
}
