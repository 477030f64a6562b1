package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/phanta1313/tgbot-sales/internal/subscription"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStatusText(t *testing.T) {
	today := day("2024-02-01")

	t.Run("active subscription shows date and renewal pitch", func(t *testing.T) {
		rec := &subscription.Subscriber{UserID: 7, ExpiresAt: day("2024-02-10")}
		text := statusText(rec, today, "Курсы")

		assert.Contains(t, text, "2024-02-10")
		assert.Contains(t, text, "/payment")
		assert.Contains(t, text, "10 дней в подарок")
	})

	t.Run("never subscribed", func(t *testing.T) {
		text := statusText(nil, today, "Курсы")

		assert.Contains(t, text, "не состоите в группе")
		assert.Contains(t, text, "Вы ни разу не вступали в группу.")
	})

	t.Run("lapsed shows the old expiry date", func(t *testing.T) {
		rec := &subscription.Subscriber{UserID: 7, ExpiresAt: day("2024-01-15")}
		text := statusText(rec, today, "Курсы")

		assert.Contains(t, text, "не состоите в группе")
		assert.Contains(t, text, "2024-01-15")
	})
}

func TestThrottle(t *testing.T) {
	th := newThrottle()
	now := day("2024-01-01")
	th.now = func() time.Time { return now }

	assert.True(t, th.allow(1, "payment", 3*time.Second))
	assert.False(t, th.allow(1, "payment", 3*time.Second))

	// a different user or a different action is not blocked
	assert.True(t, th.allow(2, "payment", 3*time.Second))
	assert.True(t, th.allow(1, "status", 3*time.Second))

	now = now.Add(4 * time.Second)
	assert.True(t, th.allow(1, "payment", 3*time.Second))
}
