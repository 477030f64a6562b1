package settlement

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanta1313/tgbot-sales/internal/subscription"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeStore struct {
	mu        sync.Mutex
	recs      map[int64]time.Time
	getErr    error
	upsertErr error
	// opDelay widens the read-modify-write window to provoke interleaving
	// when per-user locking is broken.
	opDelay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: map[int64]time.Time{}}
}

func (s *fakeStore) Get(ctx context.Context, userID int64) (*subscription.Subscriber, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	exp, ok := s.recs[userID]
	s.mu.Unlock()
	time.Sleep(s.opDelay)
	if !ok {
		return nil, nil
	}
	return &subscription.Subscriber{UserID: userID, ExpiresAt: exp}, nil
}

func (s *fakeStore) Upsert(ctx context.Context, userID int64, expiresAt time.Time) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	time.Sleep(s.opDelay)
	s.mu.Lock()
	s.recs[userID] = expiresAt
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) ListExpiringOn(ctx context.Context, day time.Time) ([]subscription.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []subscription.Subscriber
	for id, exp := range s.recs {
		if exp.Equal(day) {
			subs = append(subs, subscription.Subscriber{UserID: id, ExpiresAt: exp})
		}
	}
	return subs, nil
}

func (s *fakeStore) Close() error { return nil }

type fakeIssuer struct {
	mu    sync.Mutex
	calls []string
	url   string
	err   error
}

func (i *fakeIssuer) CreateInvite(ctx context.Context, label string) (string, error) {
	i.mu.Lock()
	i.calls = append(i.calls, label)
	i.mu.Unlock()
	if i.err != nil {
		return "", i.err
	}
	return i.url, nil
}

type fakeMessenger struct {
	mu    sync.Mutex
	texts map[int64][]string
	err   error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{texts: map[int64][]string{}}
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	m.texts[chatID] = append(m.texts[chatID], text)
	m.mu.Unlock()
	return m.err
}

func (m *fakeMessenger) sent(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts[chatID]...)
}

func fixedClock(s string) func() time.Time {
	return func() time.Time { return day(s) }
}

func confirmation(userID int64) Confirmation {
	return Confirmation{
		UserID:     userID,
		ChatID:     userID,
		FirstName:  "ivan",
		Username:   "ivan",
		Currency:   "USD",
		Amount:     10000,
		ReceivedAt: time.Now(),
	}
}

func TestSettleNewMember(t *testing.T) {
	store := newFakeStore()
	issuer := &fakeIssuer{url: "https://t.me/+abc"}
	msgr := newFakeMessenger()
	coord := New(store, issuer, msgr, WithClock(fixedClock("2024-01-01")))

	res, err := coord.Settle(context.Background(), confirmation(42))

	require.NoError(t, err)
	assert.Equal(t, StateNotified, res.State)
	assert.Equal(t, subscription.StandingNoRecord, res.Standing)
	assert.Equal(t, day("2024-01-31"), res.ExpiresAt)
	assert.Equal(t, day("2024-01-31"), store.recs[42])
	assert.Equal(t, []string{"Для @ivan"}, issuer.calls)

	sent := msgr.sent(42)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "https://t.me/+abc")
	assert.Contains(t, sent[1], "Добро пожаловать")
	assert.Contains(t, sent[1], "2024-01-31")
}

func TestSettleActiveRenewal(t *testing.T) {
	store := newFakeStore()
	store.recs[7] = day("2024-02-10")
	issuer := &fakeIssuer{url: "https://t.me/+abc"}
	msgr := newFakeMessenger()
	coord := New(store, issuer, msgr, WithClock(fixedClock("2024-02-01")))

	res, err := coord.Settle(context.Background(), confirmation(7))

	require.NoError(t, err)
	assert.Equal(t, subscription.StandingActive, res.Standing)
	// 40 days from 2024-02-10 across the leap day
	assert.Equal(t, day("2024-03-21"), store.recs[7])
	assert.Contains(t, msgr.sent(7)[1], "продлена")
}

func TestSettleLapsedUpdatesOnlyOwnRecord(t *testing.T) {
	store := newFakeStore()
	store.recs[7] = day("2024-01-15")
	store.recs[9] = day("2024-05-01")
	issuer := &fakeIssuer{url: "https://t.me/+abc"}
	msgr := newFakeMessenger()
	coord := New(store, issuer, msgr, WithClock(fixedClock("2024-02-01")))

	res, err := coord.Settle(context.Background(), confirmation(7))

	require.NoError(t, err)
	assert.Equal(t, subscription.StandingLapsed, res.Standing)
	assert.Equal(t, day("2024-03-02"), store.recs[7])
	// the other user's record is untouched
	assert.Equal(t, day("2024-05-01"), store.recs[9])
	assert.Contains(t, msgr.sent(7)[1], "снова")
}

func TestSettleStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = &subscription.StoreError{Op: "upsert", Kind: subscription.ErrConnectivity}
	issuer := &fakeIssuer{url: "https://t.me/+abc"}
	msgr := newFakeMessenger()
	coord := New(store, issuer, msgr, WithClock(fixedClock("2024-01-01")))

	res, err := coord.Settle(context.Background(), confirmation(42))

	require.Error(t, err)
	assert.Equal(t, StatePersistFailed, res.State)
	// no invite link is requested once persistence failed
	assert.Empty(t, issuer.calls)

	sent := msgr.sent(42)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "ошибка при сохранении")
}

func TestSettleLinkFailureKeepsSubscription(t *testing.T) {
	store := newFakeStore()
	issuer := &fakeIssuer{err: context.DeadlineExceeded}
	msgr := newFakeMessenger()
	coord := New(store, issuer, msgr, WithClock(fixedClock("2024-01-01")))

	res, err := coord.Settle(context.Background(), confirmation(42))

	require.Error(t, err)
	assert.Equal(t, StateLinkFailed, res.State)
	// the persisted record stands, no rollback
	assert.Equal(t, day("2024-01-31"), store.recs[42])

	sent := msgr.sent(42)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "оформлена")
	assert.Contains(t, sent[1], "не удалось создать ссылку")
	assert.NotContains(t, strings.Join(sent, "\n"), "https://")
}

func TestSettleNotificationFailureSwallowed(t *testing.T) {
	store := newFakeStore()
	issuer := &fakeIssuer{url: "https://t.me/+abc"}
	msgr := newFakeMessenger()
	msgr.err = context.DeadlineExceeded
	coord := New(store, issuer, msgr, WithClock(fixedClock("2024-01-01")))

	res, err := coord.Settle(context.Background(), confirmation(42))

	require.NoError(t, err)
	assert.Equal(t, StateNotified, res.State)
	assert.Equal(t, day("2024-01-31"), store.recs[42])
}

func TestSettleSameUserSerializes(t *testing.T) {
	store := newFakeStore()
	store.opDelay = 10 * time.Millisecond
	issuer := &fakeIssuer{url: "https://t.me/+abc"}
	msgr := newFakeMessenger()
	coord := New(store, issuer, msgr, WithClock(fixedClock("2024-01-01")))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coord.Settle(context.Background(), confirmation(7))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// net effect equals sequential application: first payment gives
	// today+30 (active afterwards), second stacks +40 on top of that.
	assert.Equal(t, day("2024-01-01").AddDate(0, 0, 70), store.recs[7])
}

func TestSettleDifferentUsersIndependent(t *testing.T) {
	store := newFakeStore()
	store.opDelay = 5 * time.Millisecond
	issuer := &fakeIssuer{url: "https://t.me/+abc"}
	msgr := newFakeMessenger()
	coord := New(store, issuer, msgr, WithClock(fixedClock("2024-01-01")))

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2, 3, 4} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := coord.Settle(context.Background(), confirmation(id))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range []int64{1, 2, 3, 4} {
		assert.Equal(t, day("2024-01-31"), store.recs[id])
	}
}

func TestReminderSweep(t *testing.T) {
	store := newFakeStore()
	store.recs[7] = day("2024-02-02")
	store.recs[9] = day("2024-03-01")
	msgr := newFakeMessenger()
	rem := NewReminder(store, msgr, WithReminderClock(fixedClock("2024-02-01")))

	rem.Sweep(context.Background())
	// second sweep within the same day must not repeat the warning
	rem.Sweep(context.Background())

	sent := msgr.sent(7)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "2024-02-02")
	assert.Empty(t, msgr.sent(9))
}
