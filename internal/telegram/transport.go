// Package telegram adapts the bot transport: inbound update dispatch and the
// outbound surfaces the settlement coordinator consumes.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger sends plain outbound messages. Implements settlement.Messenger.
type Messenger struct {
	bot *tgbotapi.BotAPI
}

func NewMessenger(bot *tgbotapi.BotAPI) *Messenger {
	return &Messenger{bot: bot}
}

func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

// InviteIssuer requests single-use invite links for the configured group.
// Implements settlement.InviteIssuer.
type InviteIssuer struct {
	bot     *tgbotapi.BotAPI
	groupID int64
}

func NewInviteIssuer(bot *tgbotapi.BotAPI, groupID int64) *InviteIssuer {
	return &InviteIssuer{bot: bot, groupID: groupID}
}

// CreateInvite asks for a link redeemable by exactly one joining member,
// labeled with the requester so it shows up attributably in the group's
// invite list. The link itself is owned by Telegram; it is only forwarded.
func (i *InviteIssuer) CreateInvite(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: i.groupID},
		Name:        label,
		MemberLimit: 1,
	}

	resp, err := i.bot.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("create invite link for chat %d: %w", i.groupID, err)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link response: %w", err)
	}
	if link.InviteLink == "" {
		return "", fmt.Errorf("empty invite link in response for chat %d", i.groupID)
	}
	return link.InviteLink, nil
}
