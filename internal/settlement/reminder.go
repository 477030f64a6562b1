package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/phanta1313/tgbot-sales/internal/subscription"
)

// Reminder nudges subscribers one day before their expiry date. Best-effort:
// a failed send is logged and retried on the next sweep.
type Reminder struct {
	store     subscription.Store
	messenger Messenger
	interval  time.Duration
	now       func() time.Time
	log       *slog.Logger

	// notified remembers the expiry date each user was already warned
	// about, so hourly sweeps do not repeat the same warning all day.
	notified map[int64]time.Time
}

func NewReminder(store subscription.Store, messenger Messenger, opts ...ReminderOption) *Reminder {
	r := &Reminder{
		store:     store,
		messenger: messenger,
		interval:  time.Hour,
		now:       time.Now,
		log:       slog.Default(),
		notified:  make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ReminderOption func(*Reminder)

func WithReminderClock(now func() time.Time) ReminderOption {
	return func(r *Reminder) { r.now = now }
}

func WithReminderInterval(d time.Duration) ReminderOption {
	return func(r *Reminder) { r.interval = d }
}

func WithReminderLogger(log *slog.Logger) ReminderOption {
	return func(r *Reminder) { r.log = log }
}

// Run sweeps until the context is canceled.
func (r *Reminder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep warns everyone whose subscription expires tomorrow.
func (r *Reminder) Sweep(ctx context.Context) {
	tomorrow := subscription.Day(r.now()).AddDate(0, 0, 1)

	subs, err := r.store.ListExpiringOn(ctx, tomorrow)
	if err != nil {
		r.log.Error("expiry sweep failed", "error", err)
		return
	}

	for _, sub := range subs {
		if r.notified[sub.UserID].Equal(sub.ExpiresAt) {
			continue
		}
		// chat id equals user id for private chats with the bot
		if err := r.messenger.SendText(ctx, sub.UserID, reminderText(sub.ExpiresAt)); err != nil {
			r.log.Error("expiry reminder failed", "user_id", sub.UserID, "error", err)
			continue
		}
		r.notified[sub.UserID] = sub.ExpiresAt
		r.log.Info("expiry reminder sent", "user_id", sub.UserID)
	}
}
