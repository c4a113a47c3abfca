// Package notifier implements the supplemented trusted-contact risk alert
// (SPEC_FULL.md §4, C12), adapted from the teacher's internal/telegram_bot:
// same tgbotapi wiring and GetUpdatesChan loop, repurposed from an
// approve/reject access-request workflow to a one-line risk alert plus
// "link <slug>" (the trusted contact registers the current chat as the
// alert recipient for that case) and "mute <slug>" commands.
package notifier

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachline/internal/repository"
)

// Bot sends best-effort risk alerts to a case's configured Telegram chat
// and listens for "link <slug>" and "mute <slug>" replies. A nil *Bot is
// valid and inert, so callers that construct it conditionally on config
// don't need extra branching (mirrors the teacher's nil-Bot convention).
type Bot struct {
	api      *tgbotapi.BotAPI
	caseRepo repository.CaseRepository
	logger   *zap.Logger
}

// NewBot returns nil, nil when token is empty so the caller can skip
// starting it entirely.
func NewBot(token string, caseRepo repository.CaseRepository, logger *zap.Logger) (*Bot, error) {
	if token == "" {
		logger.Info("telegram notifier disabled: no bot token configured")
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot api: %w", err)
	}

	logger.Info("telegram notifier authorized", zap.String("username", api.Self.UserName))
	return &Bot{api: api, caseRepo: caseRepo, logger: logger}, nil
}

// Start runs the mute/link-command listen loop until ctx is cancelled. It
// returns nil once ctx is cancelled; any other return is a genuine failure
// of the updates channel.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram notifier listening for mute/link commands")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram updates channel closed")
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	fields := strings.Fields(strings.TrimSpace(message.Text))
	if len(fields) != 2 {
		return
	}
	command, slug := strings.ToLower(fields[0]), fields[1]

	switch command {
	case "mute":
		if err := b.caseRepo.SetAlertsMuted(ctx, slug, true); err != nil {
			b.logger.Error("failed to mute case alerts", zap.String("slug", slug), zap.Error(err))
			b.send(message.Chat.ID, fmt.Sprintf("couldn't mute %s, try again", slug))
			return
		}
		b.send(message.Chat.ID, fmt.Sprintf("muted further alerts for %s", slug))

	case "link":
		if err := b.caseRepo.SetAlertChatID(ctx, slug, message.Chat.ID); err != nil {
			b.logger.Error("failed to link case alert chat", zap.String("slug", slug), zap.Error(err))
			b.send(message.Chat.ID, fmt.Sprintf("couldn't link %s, try again", slug))
			return
		}
		b.send(message.Chat.ID, fmt.Sprintf("this chat will now receive elevated-risk alerts for %s", slug))
	}
}

// AlertElevatedRisk sends a one-line alert. Call it on its own goroutine;
// it never returns an error to the caller's hot path, only logs one.
func (b *Bot) AlertElevatedRisk(chatID int64, slug string) {
	if b == nil {
		return
	}
	b.send(chatID, fmt.Sprintf("⚠️ elevated risk on an active call — %s", slug))
}

func (b *Bot) send(chatID int64, text string) {
	if b == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
