package loan

import (
	"math/big"
	"testing"
)

func TestComputeInterestFloors(t *testing.T) {
	cases := []struct {
		principal int64
		rate      uint64
		want      int64
	}{
		{1_000_000, 7, 70_000},
		{10_000, 5, 500},
		{1, 3, 0},
		{99, 1, 0},
		{101, 1, 1},
		{1_000_000, 0, 0},
		{1_000_000, 100, 1_000_000},
	}
	for _, tc := range cases {
		got := ComputeInterest(big.NewInt(tc.principal), tc.rate)
		if got.Int64() != tc.want {
			t.Fatalf("interest(%d, %d) = %s, want %d", tc.principal, tc.rate, got, tc.want)
		}
	}
}

func TestComputeRepaymentNeverBelowPrincipal(t *testing.T) {
	for _, principal := range []int64{0, 1, 999, 1_000_000} {
		for rate := uint64(0); rate <= 100; rate += 25 {
			p := big.NewInt(principal)
			got := ComputeRepayment(p, rate)
			if got.Cmp(p) < 0 {
				t.Fatalf("repayment(%d, %d) = %s below principal", principal, rate, got)
			}
		}
	}
	if got := ComputeRepayment(big.NewInt(1_000_000), 7); got.Int64() != 1_070_000 {
		t.Fatalf("repayment(1000000, 7) = %s, want 1070000", got)
	}
}

func TestComputeInterestNilPrincipal(t *testing.T) {
	if got := ComputeInterest(nil, 50); got.Sign() != 0 {
		t.Fatalf("interest of nil principal = %s, want 0", got)
	}
	if got := ComputeRepayment(nil, 50); got.Sign() != 0 {
		t.Fatalf("repayment of nil principal = %s, want 0", got)
	}
}

func TestFormatEtherFixedDigits(t *testing.T) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if got := FormatEther(one); got != "1.000000000" {
		t.Fatalf("format 1 ether = %q", got)
	}
	if got := FormatEther(big.NewInt(1_500_000_000)); got != "0.000000002" {
		// StringFixed rounds the display copy; the wei value is untouched.
		t.Fatalf("format 1.5 gwei = %q", got)
	}
	if got := FormatEther(nil); got != "0.000000000" {
		t.Fatalf("format nil = %q", got)
	}
}

func TestParseEther(t *testing.T) {
	wei, err := ParseEther("0.000000001")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if wei.Int64() != 1_000_000_000 {
		t.Fatalf("parse 1 gwei = %s", wei)
	}
	// Decimal comma input is normalised.
	wei, err = ParseEther("0,5")
	if err != nil {
		t.Fatalf("parse comma: %v", err)
	}
	want, _ := new(big.Int).SetString("500000000000000000", 10)
	if wei.Cmp(want) != 0 {
		t.Fatalf("parse 0,5 = %s, want %s", wei, want)
	}
	if _, err := ParseEther("-1"); err == nil {
		t.Fatalf("expected negative amount rejection")
	}
	if _, err := ParseEther("0.0000000000000000001"); err == nil {
		t.Fatalf("expected sub-wei precision rejection")
	}
	if _, err := ParseEther(""); err == nil {
		t.Fatalf("expected empty amount rejection")
	}
}
