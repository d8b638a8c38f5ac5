package telegram

import (
	"context"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/infra/notify"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Bot API the handlers and notifier use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	handlers    *Handlers
	pollTimeout int
}

func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func NewBot(api *tgbotapi.BotAPI, handlers *Handlers, pollTimeout int) *Bot {
	return &Bot{api: api, handlers: handlers, pollTimeout: pollTimeout}
}

func (b *Bot) Start(ctx context.Context) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(config)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handlers.HandleUpdate(ctx, b.api, update)
		}
	}
}

// Notifier delivers alerts as chat messages to the configured chat.
type Notifier struct {
	api    Sender
	chatID int64
	logger *zap.Logger
}

func NewNotifier(api Sender, chatID int64, logger *zap.Logger) *Notifier {
	return &Notifier{api: api, chatID: chatID, logger: logger}
}

func (n *Notifier) Dispatch(ctx context.Context, event domain.AlertEvent) domain.DeliveryOutcome {
	outcome := domain.DeliveryOutcome{Channel: "telegram", Kind: event.Kind}
	if n.chatID == 0 {
		outcome.Reason = "TELEGRAM_CHAT_ID not set"
		return outcome
	}

	n.logger.Info("telegram notify send", zap.Int64("chat_id", n.chatID), zap.Uint("product_id", event.ProductID), zap.String("transition", string(event.Kind)))
	msg := tgbotapi.NewMessage(n.chatID, notify.Short(event))
	msg.DisableWebPagePreview = true

	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			n.logger.Warn("failed to notify", zap.Error(err))
			outcome.Reason = err.Error()
			return outcome
		}
	case <-ctx.Done():
		outcome.Reason = ctx.Err().Error()
		return outcome
	}
	outcome.Delivered = true
	return outcome
}
