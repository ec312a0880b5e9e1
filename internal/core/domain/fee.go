package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// LateFeeRate is the share of the daily rate charged per late day.
var LateFeeRate = decimal.RequireFromString("0.15")

// BaseFee is the rental cost for the booked period.
func BaseFee(dailyRate decimal.Decimal, rentalDays int) decimal.Decimal {
	return dailyRate.Mul(decimal.NewFromInt(int64(rentalDays))).Round(moneyPlaces)
}

// LateFee rounds the per-day late rate to cents before multiplying by the
// number of late days. Rounding the product instead gives different results
// for multi-day lateness.
func LateFee(dailyRate decimal.Decimal, lateDays int) decimal.Decimal {
	if lateDays <= 0 {
		return decimal.Zero
	}
	perDay := dailyRate.Mul(LateFeeRate).Round(moneyPlaces)
	return perDay.Mul(decimal.NewFromInt(int64(lateDays)))
}

// LateDays is the number of whole days returned after the expected date.
func LateDays(expected, actual time.Time) int {
	days := DaysBetween(expected, actual)
	if days < 0 {
		return 0
	}
	return days
}
