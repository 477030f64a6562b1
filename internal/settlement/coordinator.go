// Package settlement turns a confirmed payment into an extended subscription
// and a single-use invite link, keeping the two reconciled when either side
// fails.
package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phanta1313/tgbot-sales/internal/metrics"
	"github.com/phanta1313/tgbot-sales/internal/subscription"
)

// State names the stop of the settlement state machine a settlement reached.
type State string

const (
	StateReceived      State = "received"
	StateEvaluated     State = "evaluated"
	StatePersisted     State = "persisted"
	StateLinkIssued    State = "link_issued"
	StateNotified      State = "notified"
	StatePersistFailed State = "persist_failed"
	StateLinkFailed    State = "link_failed"
)

// Confirmation is one confirmed payment as delivered by the transport.
// Consumed exactly once per settlement attempt; never persisted.
type Confirmation struct {
	UserID     int64
	ChatID     int64
	FirstName  string
	Username   string
	Currency   string
	Amount     int64
	ReceivedAt time.Time
}

// InviteIssuer requests a single-use, single-member invite link from the
// group-management transport. The link is forwarded, never stored.
type InviteIssuer interface {
	CreateInvite(ctx context.Context, label string) (string, error)
}

// Messenger delivers outbound user notifications.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Result reports where a settlement ended up.
type Result struct {
	State     State
	Standing  subscription.Standing
	ExpiresAt time.Time
	InviteURL string
}

// Coordinator orchestrates read -> policy -> upsert -> invite -> notify.
// All collaborators are injected; the coordinator holds no transport state.
type Coordinator struct {
	store     subscription.Store
	invites   InviteIssuer
	messenger Messenger

	now              func() time.Time
	storeTimeout     time.Duration
	transportTimeout time.Duration
	locks            userLocks
	log              *slog.Logger
}

// Option tweaks a Coordinator; tests inject a fixed clock and short timeouts.
type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithTimeouts(store, transport time.Duration) Option {
	return func(c *Coordinator) {
		c.storeTimeout = store
		c.transportTimeout = transport
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

func New(store subscription.Store, invites InviteIssuer, messenger Messenger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:            store,
		invites:          invites,
		messenger:        messenger,
		now:              time.Now,
		storeTimeout:     10 * time.Second,
		transportTimeout: 15 * time.Second,
		log:              slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settle handles one payment confirmation end to end. Persistence and link
// issuance are deliberately not one transaction: the invite service has no
// compensating action, so an already-paid subscription is never rolled back
// because a downstream call failed. The returned error is non-nil for the
// failure exits; the user-facing messaging has already happened either way.
func (c *Coordinator) Settle(ctx context.Context, conf Confirmation) (Result, error) {
	unlock := c.locks.acquire(conf.UserID)
	defer unlock()

	started := c.now()
	defer func() { metrics.SettlementDuration.Observe(c.now().Sub(started).Seconds()) }()

	log := c.log.With(
		"settlement_id", uuid.NewString(),
		"user_id", conf.UserID,
		"amount", conf.Amount,
		"currency", conf.Currency,
	)
	log.Info("settlement received", "state", string(StateReceived))

	today := subscription.Day(c.now())

	// Received -> Evaluated. The read and the policy run under the per-user
	// lock, so two payments for one user cannot both see the pre-update row.
	sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	rec, err := c.store.Get(sctx, conf.UserID)
	cancel()
	if err != nil {
		return c.persistFailed(ctx, log, conf, "read subscriber", err)
	}

	ren := subscription.Extend(rec, today)
	log.Info("settlement evaluated", "state", string(StateEvaluated),
		"standing", ren.Standing.String(), "new_expiry", ren.ExpiresAt.Format(dateLayout))

	// Evaluated -> Persisted.
	sctx, cancel = context.WithTimeout(ctx, c.storeTimeout)
	err = c.store.Upsert(sctx, conf.UserID, ren.ExpiresAt)
	cancel()
	if err != nil {
		return c.persistFailed(ctx, log, conf, "upsert subscriber", err)
	}
	log.Info("settlement persisted", "state", string(StatePersisted))

	// Persisted -> LinkIssued. On failure the record stands: the user paid
	// and is entitled to access, support issues the link out-of-band.
	ictx, cancel := context.WithTimeout(ctx, c.transportTimeout)
	url, err := c.invites.CreateInvite(ictx, inviteLabel(conf.FirstName))
	cancel()
	if err != nil {
		metrics.InviteLinksTotal.WithLabelValues("error").Inc()
		metrics.SettlementsTotal.WithLabelValues(string(StateLinkFailed)).Inc()
		log.Error("invite link creation failed, subscription kept",
			"state", string(StateLinkFailed), "error", err)
		c.notify(ctx, log, conf.ChatID, confirmationText(ren))
		c.notify(ctx, log, conf.ChatID, linkPendingText)
		return Result{State: StateLinkFailed, Standing: ren.Standing, ExpiresAt: ren.ExpiresAt}, err
	}
	metrics.InviteLinksTotal.WithLabelValues("ok").Inc()
	log.Info("invite link issued", "state", string(StateLinkIssued))

	// LinkIssued -> Notified. Send failures are logged only: the side
	// effects of value are already complete.
	c.notify(ctx, log, conf.ChatID, inviteLinkText(url))
	c.notify(ctx, log, conf.ChatID, confirmationText(ren))

	metrics.SettlementsTotal.WithLabelValues(string(StateNotified)).Inc()
	log.Info("settlement notified", "state", string(StateNotified))
	return Result{State: StateNotified, Standing: ren.Standing, ExpiresAt: ren.ExpiresAt, InviteURL: url}, nil
}

// persistFailed abandons the settlement before any external side effect. The
// payment has already cleared at the transport, so the failure is logged for
// manual reconciliation and surfaced to the user as an explicit error.
func (c *Coordinator) persistFailed(ctx context.Context, log *slog.Logger, conf Confirmation, op string, err error) (Result, error) {
	metrics.SettlementsTotal.WithLabelValues(string(StatePersistFailed)).Inc()
	log.Error("settlement abandoned, payment cleared but subscription not recorded",
		"state", string(StatePersistFailed), "op", op, "error", err)
	c.notify(ctx, log, conf.ChatID, persistFailedText)
	return Result{State: StatePersistFailed}, err
}

func (c *Coordinator) notify(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	nctx, cancel := context.WithTimeout(ctx, c.transportTimeout)
	defer cancel()
	if err := c.messenger.SendText(nctx, chatID, text); err != nil {
		log.Error("notification failed", "chat_id", chatID, "error", err)
	}
}
