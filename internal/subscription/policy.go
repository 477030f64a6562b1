package subscription

import "time"

const (
	// BasePeriodDays is what one payment buys.
	BasePeriodDays = 30
	// BonusDays is granted on top when the user renews before lapsing.
	BonusDays = 10
	// RenewPeriodDays stacks on the current expiry for an active renewal.
	RenewPeriodDays = BasePeriodDays + BonusDays
)

// Renewal is the policy outcome for one confirmed payment.
type Renewal struct {
	ExpiresAt time.Time
	Standing  Standing
}

// Renewed reports whether the user had a record before this payment.
func (r Renewal) Renewed() bool { return r.Standing != StandingNoRecord }

// Extend computes the new expiry date for a confirmed payment. rec is the
// subscriber's current record, nil when none exists. Pure: no I/O, no clock.
//
//   - no record:       today + 30 days
//   - still active:    current expiry + 40 days (30 + 10 bonus)
//   - lapsed:          today + 30 days, no bonus
func Extend(rec *Subscriber, today time.Time) Renewal {
	today = Day(today)

	switch StandingOf(rec, today) {
	case StandingActive:
		return Renewal{
			ExpiresAt: Day(rec.ExpiresAt).AddDate(0, 0, RenewPeriodDays),
			Standing:  StandingActive,
		}
	case StandingLapsed:
		return Renewal{
			ExpiresAt: today.AddDate(0, 0, BasePeriodDays),
			Standing:  StandingLapsed,
		}
	default:
		return Renewal{
			ExpiresAt: today.AddDate(0, 0, BasePeriodDays),
			Standing:  StandingNoRecord,
		}
	}
}
