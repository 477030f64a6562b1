package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/phanta1313/tgbot-sales/internal/config"
	"github.com/phanta1313/tgbot-sales/internal/metrics"
	"github.com/phanta1313/tgbot-sales/internal/settlement"
	"github.com/phanta1313/tgbot-sales/internal/subscription"
)

const paymentCooldown = 3 * time.Second

// Handler dispatches inbound updates to the command handlers and the
// settlement coordinator. It owns no settlement state of its own.
type Handler struct {
	bot      *tgbotapi.BotAPI
	store    subscription.Store
	settle   *settlement.Coordinator
	cfg      *config.Config
	cooldown *throttle
	now      func() time.Time
	log      *slog.Logger
}

func NewHandler(bot *tgbotapi.BotAPI, store subscription.Store, coord *settlement.Coordinator, cfg *config.Config) *Handler {
	return &Handler{
		bot:      bot,
		store:    store,
		settle:   coord,
		cfg:      cfg,
		cooldown: newThrottle(),
		now:      time.Now,
		log:      slog.Default(),
	}
}

// HandleUpdate is the single dispatch entry point per inbound event kind.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		metrics.UpdatesTotal.WithLabelValues("pre_checkout").Inc()
		h.handlePreCheckout(update.PreCheckoutQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		metrics.UpdatesTotal.WithLabelValues("successful_payment").Inc()
		h.handleSuccessfulPayment(ctx, update.Message)
	case update.Message != nil && update.Message.IsCommand():
		metrics.UpdatesTotal.WithLabelValues("command").Inc()
		h.handleCommand(ctx, update.Message)
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		h.showCommands(msg)
	case "id":
		h.showChatID(msg)
	case "my_subscription":
		h.showSubscription(ctx, msg)
	case "payment":
		h.sendInvoice(msg)
	}
}

func (h *Handler) showCommands(msg *tgbotapi.Message) {
	text := fmt.Sprintf(
		"Здравствуйте, %s 👋\n"+
			"Чтобы начать, ознакомтесь со списком команд оплаты и получения справки о текущей подписке:\n\n"+
			"/my_subscription — Получить справку о текущем состоянии подписки ℹ️\n"+
			"/payment — Начать оплату и приобрести ссылку на %s 💸\n\n"+
			"⚠️ Важно: подписка дается на %d дней, и перестает быть действительной в день истекания срока в 00:00\n\n"+
			"Еще:\n"+
			"/id — Узнать ID текущего чата или группы\n"+
			"/help — Вывести это сообщение",
		msg.From.FirstName, h.cfg.GroupName, subscription.BasePeriodDays,
	)

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyMarkup = commandsKeyboard()
	if _, err := h.bot.Send(reply); err != nil {
		h.log.Error("send commands menu failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (h *Handler) showChatID(msg *tgbotapi.Message) {
	reply := tgbotapi.NewMessage(msg.Chat.ID,
		fmt.Sprintf("💬 ID чата: `%d`\n📦 Тип: `%s`", msg.Chat.ID, msg.Chat.Type))
	reply.ParseMode = tgbotapi.ModeMarkdown
	reply.ReplyToMessageID = msg.MessageID
	if _, err := h.bot.Send(reply); err != nil {
		h.log.Error("send chat id failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (h *Handler) showSubscription(ctx context.Context, msg *tgbotapi.Message) {
	rec, err := h.store.Get(ctx, msg.From.ID)
	if err != nil {
		h.log.Error("subscription lookup failed", "user_id", msg.From.ID, "error", err)
		h.sendHTML(msg.Chat.ID, "❌ Не удалось получить информацию о подписке. Попробуйте позже.")
		return
	}
	h.sendHTML(msg.Chat.ID, statusText(rec, subscription.Day(h.now()), h.cfg.GroupName))
}

// statusText renders /my_subscription. Read-only use of the expiry policy's
// standing classification; no record and a lapsed record share the
// not-a-member wording, the latter with the old expiry date shown.
func statusText(rec *subscription.Subscriber, today time.Time, groupName string) string {
	if subscription.StandingOf(rec, today) == subscription.StandingActive {
		return fmt.Sprintf(
			"Дата истекания срока вашей подписки: <b>%s</b>.\n"+
				"Если хотите продлить на месяц - можете еще раз воспользоваться командой /payment 💸\n"+
				"И получить %d дней в подарок! 🧠",
			rec.ExpiresAt.Format("2006-01-02"), subscription.BonusDays,
		)
	}

	lastExpiry := "Вы ни разу не вступали в группу."
	if rec != nil {
		lastExpiry = rec.ExpiresAt.Format("2006-01-02")
	}
	return fmt.Sprintf(
		"На данный момент вы не состоите в группе <b>%s</b>.\n"+
			"Дата истекания вашей последней подписки - %s\n"+
			"Хотите стать частью нашего сообщества и получить весь материал по курсам?\n"+
			"Впишите команду /payment для оплаты. 💸\n"+
			"После успешной оплаты вы получите одноразовую ссылку на группу. ✅",
		groupName, lastExpiry,
	)
}

func (h *Handler) sendInvoice(msg *tgbotapi.Message) {
	if !h.cooldown.allow(msg.From.ID, "payment", paymentCooldown) {
		return
	}

	invoice := tgbotapi.NewInvoice(
		msg.Chat.ID,
		h.cfg.SubTitle,
		fmt.Sprintf("Оплата доступа к группе %s на %d дней", h.cfg.GroupName, subscription.BasePeriodDays),
		fmt.Sprintf("%d:%s", msg.From.ID, msg.From.UserName),
		h.cfg.ProviderToken,
		"subscription-start",
		h.cfg.SubCurrency,
		[]tgbotapi.LabeledPrice{
			{Label: h.cfg.SubDescription, Amount: h.cfg.SubPrice},
		},
	)
	if _, err := h.bot.Send(invoice); err != nil {
		h.log.Error("send invoice failed", "chat_id", msg.Chat.ID, "error", err)
		h.sendHTML(msg.Chat.ID, "❌ Не удалось сформировать счет. Попробуйте позже.")
	}
}

// handlePreCheckout confirms every pre-checkout query: the product is always
// in stock, eligibility is not checked before payment.
func (h *Handler) handlePreCheckout(query *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if _, err := h.bot.Request(answer); err != nil {
		h.log.Error("pre-checkout answer failed", "user_id", query.From.ID, "error", err)
	}
}

func (h *Handler) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	pay := msg.SuccessfulPayment
	conf := settlement.Confirmation{
		UserID:     msg.From.ID,
		ChatID:     msg.Chat.ID,
		FirstName:  msg.From.FirstName,
		Username:   msg.From.UserName,
		Currency:   pay.Currency,
		Amount:     int64(pay.TotalAmount),
		ReceivedAt: h.now(),
	}

	// The coordinator does all user-facing messaging for both the success
	// path and the failure exits; only the outcome is logged here.
	if _, err := h.settle.Settle(ctx, conf); err != nil {
		h.log.Error("settlement finished in failure state", "user_id", conf.UserID, "error", err)
	}
}

func (h *Handler) sendHTML(chatID int64, text string) {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(reply); err != nil {
		h.log.Error("send message failed", "chat_id", chatID, "error", err)
	}
}

func commandsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/id"),
			tgbotapi.NewKeyboardButton("/my_subscription"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/payment"),
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
}
