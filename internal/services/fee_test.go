package services

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		price, percent  string
		fee, sellerGets string
	}{
		{"1000", "10", "100", "900"},
		{"999.99", "10", "100", "899.99"},
		{"0.05", "10", "0.01", "0.04"},
		{"150", "0", "0", "150"},
		{"150", "100", "150", "0"},
		{"333.33", "7.5", "25", "308.33"},
	}
	for _, tc := range tests {
		price := dec(tc.price)
		fee, sellerGets := SplitFee(price, dec(tc.percent))
		assertMoney(t, "fee for "+tc.price+"@"+tc.percent, fee, dec(tc.fee))
		assertMoney(t, "seller_gets for "+tc.price+"@"+tc.percent, sellerGets, dec(tc.sellerGets))
		if !fee.Add(sellerGets).Equal(price) {
			t.Errorf("%s@%s: fee + seller_gets != price", tc.price, tc.percent)
		}
	}
}

func TestMeanRating(t *testing.T) {
	if got := MeanRating(nil); !got.IsZero() {
		t.Errorf("empty: got %s, want 0", got)
	}
	if got := MeanRating([]int{5, 3, 4}); !got.Equal(decimal.NewFromInt(4)) {
		t.Errorf("[5,3,4]: got %s, want 4", got)
	}
	if got := MeanRating([]int{5, 4, 4}); got.StringFixed(2) != "4.33" {
		t.Errorf("[5,4,4]: got %s, want 4.33", got.StringFixed(2))
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(0, 1, 100, 20); got != 20 {
		t.Errorf("zero: got %d, want 20", got)
	}
	if got := clamp(500, 1, 100, 20); got != 100 {
		t.Errorf("over: got %d, want 100", got)
	}
	if got := clamp(7, 1, 100, 20); got != 7 {
		t.Errorf("in range: got %d, want 7", got)
	}
}
