package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExtend(t *testing.T) {
	tests := []struct {
		name         string
		rec          *Subscriber
		today        string
		wantExpiry   string
		wantStanding Standing
	}{
		{
			name:         "new member gets 30 days",
			rec:          nil,
			today:        "2024-01-01",
			wantExpiry:   "2024-01-31",
			wantStanding: StandingNoRecord,
		},
		{
			// 2024 is a leap year: 2024-02-10 + 40 days crosses Feb 29
			name:         "active renewal stacks 40 days on current expiry",
			rec:          &Subscriber{UserID: 7, ExpiresAt: day("2024-02-10")},
			today:        "2024-02-01",
			wantExpiry:   "2024-03-21",
			wantStanding: StandingActive,
		},
		{
			name:         "lapsed renewal restarts at 30 days, no bonus",
			rec:          &Subscriber{UserID: 7, ExpiresAt: day("2024-01-15")},
			today:        "2024-02-01",
			wantExpiry:   "2024-03-02",
			wantStanding: StandingLapsed,
		},
		{
			name:         "expiry today still counts as active",
			rec:          &Subscriber{UserID: 3, ExpiresAt: day("2024-02-01")},
			today:        "2024-02-01",
			wantExpiry:   "2024-03-12",
			wantStanding: StandingActive,
		},
		{
			name:         "expiry yesterday is lapsed",
			rec:          &Subscriber{UserID: 3, ExpiresAt: day("2024-01-31")},
			today:        "2024-02-01",
			wantExpiry:   "2024-03-02",
			wantStanding: StandingLapsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extend(tt.rec, day(tt.today))
			assert.Equal(t, day(tt.wantExpiry), got.ExpiresAt)
			assert.Equal(t, tt.wantStanding, got.Standing)
		})
	}
}

func TestExtendIgnoresTimeOfDay(t *testing.T) {
	rec := &Subscriber{UserID: 1, ExpiresAt: day("2023-02-10")}
	noon := time.Date(2023, 2, 1, 12, 30, 0, 0, time.UTC)

	got := Extend(rec, noon)

	require.Equal(t, day("2023-03-22"), got.ExpiresAt)
	assert.True(t, got.Renewed())
}

func TestStandingOf(t *testing.T) {
	today := day("2024-02-01")

	assert.Equal(t, StandingNoRecord, StandingOf(nil, today))
	assert.Equal(t, StandingActive, StandingOf(&Subscriber{ExpiresAt: day("2024-02-01")}, today))
	assert.Equal(t, StandingLapsed, StandingOf(&Subscriber{ExpiresAt: day("2024-01-15")}, today))
}

func TestStoreErrorRetryable(t *testing.T) {
	assert.True(t, (&StoreError{Kind: ErrConnectivity}).Retryable())
	assert.True(t, (&StoreError{Kind: ErrConflict}).Retryable())
	assert.False(t, (&StoreError{Kind: ErrConstraint}).Retryable())
}
