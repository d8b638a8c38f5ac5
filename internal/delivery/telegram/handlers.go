package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/NasaVasa/itemwatcher/internal/money"
	"github.com/NasaVasa/itemwatcher/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	historyLimit  = 10
	maxMessageLen = 3800
)

type ProductService interface {
	AddProduct(ctx context.Context, rawURL, targetText string) (*domain.Product, domain.CheckResult, error)
	ListProducts(ctx context.Context) ([]usecase.ProductSummary, error)
	RemoveProduct(ctx context.Context, productID uint) (*domain.Product, error)
	SetTarget(ctx context.Context, productID uint, targetText string) (*domain.Product, error)
	History(ctx context.Context, productID uint, limit int) (*domain.Product, []domain.Observation, *int64, error)
}

type CheckService interface {
	Check(ctx context.Context, productID uint) domain.CheckResult
	CheckAll(ctx context.Context) domain.BatchResult
}

type Handlers struct {
	products ProductService
	checks   CheckService
	chatID   int64
	logger   *zap.Logger
}

// NewHandlers serves commands from chatID only; zero serves every chat.
func NewHandlers(products ProductService, checks CheckService, chatID int64, logger *zap.Logger) *Handlers {
	return &Handlers{products: products, checks: checks, chatID: chatID, logger: logger}
}

func (h *Handlers) HandleUpdate(ctx context.Context, api Sender, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	if update.Message.From == nil {
		return
	}
	if h.chatID != 0 && update.Message.Chat.ID != h.chatID {
		h.logger.Warn("ignoring message from unknown chat", zap.Int64("chat_id", update.Message.Chat.ID), zap.Int64("telegram_user_id", update.Message.From.ID))
		return
	}
	if update.Message.IsCommand() {
		h.handleCommand(ctx, api, update)
		return
	}
}

func (h *Handlers) handleCommand(ctx context.Context, api Sender, update tgbotapi.Update) {
	command := update.Message.Command()
	args := update.Message.CommandArguments()
	chatID := update.Message.Chat.ID

	h.logger.Info(
		"telegram command received",
		zap.Int64("chat_id", chatID),
		zap.Int64("telegram_user_id", update.Message.From.ID),
		zap.String("username", update.Message.From.UserName),
		zap.String("command", command),
		zap.String("args", args),
	)

	switch command {
	case "start":
		h.reply(api, chatID, "Welcome to itemwatcher.\n\n"+HelpText)
	case "help":
		h.reply(api, chatID, HelpText)
	case "list":
		summaries, err := h.products.ListProducts(ctx)
		if err != nil {
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		if len(summaries) == 0 {
			h.reply(api, chatID, "Nothing tracked yet. Use /add <url> to start.")
			return
		}
		h.reply(api, chatID, formatProductList(summaries))
	case "add":
		url, target, err := ParseAddArgs(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /add <url> [target]")
			return
		}
		product, result, err := h.products.AddProduct(ctx, url, target)
		if err != nil {
			h.logger.Warn("add failed", zap.String("url", url), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		h.logger.Info("add complete", zap.Uint("product_id", product.ID))
		text := fmt.Sprintf("Tracking #%d %s\n%s", product.ID, displayTitle(*product), formatProductState(*product))
		if !result.OK() {
			text += "\nFirst check failed: " + result.FailureKind().Describe()
		}
		h.reply(api, chatID, text)
	case "remove":
		productID, err := ParseProductID(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /remove <id>")
			return
		}
		product, err := h.products.RemoveProduct(ctx, productID)
		if err != nil {
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		h.reply(api, chatID, fmt.Sprintf("Stopped tracking #%d %s", product.ID, displayTitle(*product)))
	case "target":
		productID, target, err := ParseTargetArgs(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /target <id> <price|off>")
			return
		}
		product, err := h.products.SetTarget(ctx, productID, target)
		if err != nil {
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		if product.TargetPrice == nil {
			h.reply(api, chatID, fmt.Sprintf("Target cleared for #%d.", product.ID))
			return
		}
		h.reply(api, chatID, fmt.Sprintf("Target for #%d set to %s.", product.ID, money.Display(*product.TargetPrice, product.Currency)))
	case "check":
		if strings.TrimSpace(args) == "" {
			h.reply(api, chatID, "Checking all products...")
			batch := h.checks.CheckAll(ctx)
			h.reply(api, chatID, formatBatch(batch))
			return
		}
		productID, err := ParseProductID(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /check [id]")
			return
		}
		h.reply(api, chatID, formatCheckResult(h.checks.Check(ctx, productID)))
	case "history":
		productID, err := ParseProductID(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /history <id>")
			return
		}
		product, history, lowest, err := h.products.History(ctx, productID, historyLimit)
		if err != nil {
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		h.reply(api, chatID, formatHistory(*product, history, lowest))
	default:
		h.logger.Warn("unknown command", zap.String("command", command))
		h.reply(api, chatID, "Unknown command.\n\n"+HelpText)
	}
}

func (h *Handlers) errorMessage(err error) string {
	switch {
	case errors.Is(err, usecase.ErrInvalidURL):
		return "That does not look like a product URL."
	case errors.Is(err, usecase.ErrUnsupportedSite):
		return "That store is not supported. Use an amazon.in or flipkart.com link."
	case errors.Is(err, usecase.ErrInvalidTarget):
		return "Invalid target price. Use a number like 24999 or 24,999.50."
	case errors.Is(err, usecase.ErrProductNotFound):
		return "Product not found. Use /list to see tracked products."
	case errors.Is(err, usecase.ErrCheckInProgress):
		return "A check is running for this product. Try again shortly."
	}

	h.logger.Warn("unhandled error", zap.Error(err))
	return "Something went wrong. Please try again."
}

func (h *Handlers) reply(api Sender, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := api.Send(msg); err != nil {
		h.logger.Warn("failed to send message", zap.Error(err))
	}
}
