package services

import (
	"github.com/shopspring/decimal"
)

// DefaultFeePercent is the platform commission applied when none is configured.
var DefaultFeePercent = decimal.NewFromInt(10)

var hundred = decimal.NewFromInt(100)

// SplitFee returns the platform fee (rounded to cents) and the seller's share.
// fee + sellerGets == price always holds.
func SplitFee(price, percent decimal.Decimal) (fee, sellerGets decimal.Decimal) {
	fee = price.Mul(percent).Div(hundred).Round(2)
	sellerGets = price.Sub(fee)
	return fee, sellerGets
}

// MeanRating is the arithmetic mean of ratings rounded to two decimals; zero when empty.
func MeanRating(ratings []int) decimal.Decimal {
	if len(ratings) == 0 {
		return decimal.Zero
	}
	var sum int64
	for _, r := range ratings {
		sum += int64(r)
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(ratings)))).Round(2)
}
