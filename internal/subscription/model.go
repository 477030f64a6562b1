// Package subscription holds the subscriber model, the expiry policy and the
// store contract. The policy is pure; everything with side effects lives
// behind the Store interface.
package subscription

import "time"

// Subscriber is one row per Telegram user. Absence of a row means the user
// never subscribed; ExpiresAt in the past means the subscription lapsed.
type Subscriber struct {
	UserID    int64
	ExpiresAt time.Time
}

// Standing classifies a subscriber relative to an evaluation date.
type Standing int

const (
	StandingNoRecord Standing = iota
	StandingActive
	StandingLapsed
)

func (s Standing) String() string {
	switch s {
	case StandingActive:
		return "active"
	case StandingLapsed:
		return "lapsed"
	default:
		return "no_record"
	}
}

// StandingOf derives the tagged state the policy consumes. rec may be nil.
func StandingOf(rec *Subscriber, today time.Time) Standing {
	if rec == nil {
		return StandingNoRecord
	}
	if Day(rec.ExpiresAt).Before(Day(today)) {
		return StandingLapsed
	}
	return StandingActive
}

// Day normalizes a timestamp to midnight UTC. Expiry dates are calendar
// days; a subscription expiring today still counts as active.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
