package settlement

import (
	"fmt"
	"time"

	"github.com/phanta1313/tgbot-sales/internal/subscription"
)

const dateLayout = "2006-01-02"

// confirmationText picks the wording for a settled payment: new member,
// renewal before expiry with the bonus, or a comeback after lapsing.
func confirmationText(ren subscription.Renewal) string {
	date := ren.ExpiresAt.Format(dateLayout)

	switch ren.Standing {
	case subscription.StandingActive:
		return fmt.Sprintf("✅ Подписка продлена до %s!\nБлагодарим за то что остаетесь с нами!", date)
	case subscription.StandingLapsed:
		return fmt.Sprintf("✅ Подписка оформлена до %s!\nРады видеть вас снова!", date)
	default:
		return fmt.Sprintf("✅ Подписка оформлена до %s!\nДобро пожаловать!", date)
	}
}

func inviteLinkText(url string) string {
	return fmt.Sprintf("Ваша персональная ссылка:\n%s", url)
}

func inviteLabel(firstName string) string {
	return fmt.Sprintf("Для @%s", firstName)
}

func reminderText(expiresAt time.Time) string {
	return fmt.Sprintf(
		"⚠️ Ваша подписка истекает %s в 00:00.\nПродлите её командой /payment и получите %d дней в подарок! 🧠",
		expiresAt.Format(dateLayout), subscription.BonusDays,
	)
}

const (
	// The payment already cleared at the transport when persistence fails,
	// so the user gets a distinct processing-error message and the failure
	// is logged for manual reconciliation.
	persistFailedText = "⚠️ Произошла ошибка при сохранении в базу данных или платеже. Напишите в поддержку — платеж уже прошел, мы все поправим."

	// Link issuance failed after the subscription was persisted: the record
	// stands, support issues the link by hand.
	linkPendingText = "⚠️ Оплата прошла успешно, но не удалось создать ссылку-приглашение. Напишите в поддержку, и мы выдадим её вручную."
)
