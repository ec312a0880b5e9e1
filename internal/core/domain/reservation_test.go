package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservation_IsOverdue(t *testing.T) {
	today := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		status   ReservationStatus
		expected time.Time
		want     bool
	}{
		{"active past due", ReservationStatusActive, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), true},
		{"active due today", ReservationStatusActive, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), false},
		{"active due later", ReservationStatusActive, time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), false},
		{"returned past due", ReservationStatusReturned, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reservation{Status: tt.status, ExpectedReturnDate: tt.expected}
			assert.Equal(t, tt.want, r.IsOverdue(today))
		})
	}
}

func TestParseReservationStatus(t *testing.T) {
	st, err := ParseReservationStatus("RETURNED")
	require.NoError(t, err)
	assert.Equal(t, ReservationStatusReturned, st)

	_, err = ParseReservationStatus("OVERDUE")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	got := DateOf(time.Date(2025, 1, 31, 22, 15, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), got)
}
