package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBaseFee(t *testing.T) {
	fee := BaseFee(decimal.RequireFromString("15.99"), 7)
	assert.Equal(t, "111.93", fee.StringFixed(2))
}

func TestLateFee_RoundsPerDayRateFirst(t *testing.T) {
	// 15.99 * 0.15 = 2.3985 -> 2.40 per day
	fee := LateFee(decimal.RequireFromString("15.99"), 3)
	assert.Equal(t, "7.20", fee.StringFixed(2))

	// rounding the product instead would give round(7.1955) = 7.20 here but
	// diverges for longer lateness: 2.3985 * 10 = 23.985 -> 23.99, not 24.00
	fee = LateFee(decimal.RequireFromString("15.99"), 10)
	assert.Equal(t, "24.00", fee.StringFixed(2))
}

func TestLateFee_HalfUp(t *testing.T) {
	// 0.30 * 0.15 = 0.045 -> 0.05
	fee := LateFee(decimal.RequireFromString("0.30"), 1)
	assert.Equal(t, "0.05", fee.StringFixed(2))
}

func TestLateFee_NotLate(t *testing.T) {
	assert.True(t, LateFee(decimal.RequireFromString("15.99"), 0).IsZero())
	assert.True(t, LateFee(decimal.RequireFromString("15.99"), -2).IsZero())
}

func TestLateDays(t *testing.T) {
	expected := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, LateDays(expected, expected))
	assert.Equal(t, 0, LateDays(expected, expected.AddDate(0, 0, -4)))
	assert.Equal(t, 3, LateDays(expected, expected.AddDate(0, 0, 3)))
	// time of day is ignored
	assert.Equal(t, 1, LateDays(expected, time.Date(2025, 3, 11, 23, 59, 0, 0, time.UTC)))
}
