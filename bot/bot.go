// Package bot implements the Telegram command surface: user subscription
// commands and the admin product-management commands.
package bot

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"restock-notifier/pkg/restock"
)

// Store is the persistence surface the command handlers need.
type Store interface {
	Product(ctx context.Context, id string) (*restock.Product, error)
	ProductByName(ctx context.Context, name string) (*restock.Product, error)
	AllProducts(ctx context.Context) ([]*restock.Product, error)
	CreateProduct(ctx context.Context, p *restock.Product) (string, error)
	DeleteProduct(ctx context.Context, id string) error
	SetProductActive(ctx context.Context, id string, active bool) error
	SetProductStatus(ctx context.Context, id string, st restock.Status) error
	ResetAllStatuses(ctx context.Context) (int, error)
	UpdateProductCheck(ctx context.Context, id string, upd restock.CheckUpdate) error

	Subscription(ctx context.Context, id string) (*restock.Subscription, error)
	Subscribe(ctx context.Context, subscriberID, productID string) error
	SubscribeAll(ctx context.Context, subscriberID string) error
	Unsubscribe(ctx context.Context, subscriberID, productID string) error
	UnsubscribeAll(ctx context.Context, subscriberID string) error
}

// Checker classifies a product page on demand, without notifications.
type Checker interface {
	Classify(ctx context.Context, p *restock.Product) restock.Status
}

// API is the slice of the Telegram client the bot needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) (tgbotapi.UpdatesChannel, error)
}

// Bot dispatches chat commands.
type Bot struct {
	api     API
	store   Store
	checker Checker
	isAdmin func(chatID int64) bool
	logger  *slog.Logger
	now     func() time.Time
}

// New creates the command dispatcher.
func New(api API, store Store, checker Checker, isAdmin func(chatID int64) bool, logger *slog.Logger) *Bot {
	return &Bot{
		api:     api,
		store:   store,
		checker: checker,
		isAdmin: isAdmin,
		logger:  logger,
		now:     time.Now,
	}
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates, err := b.api.GetUpdatesChan(u)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			message := update.Message
			if message == nil {
				message = update.ChannelPost
			}
			if message == nil || !message.IsCommand() {
				continue
			}

			chatID := message.Chat.ID
			reply := b.handleCommand(ctx, chatID, message.Command(), message.CommandArguments())
			if reply == "" {
				continue
			}

			msg := tgbotapi.NewMessage(chatID, reply)
			msg.ParseMode = "Markdown"
			msg.DisableWebPagePreview = true
			if _, err := b.api.Send(msg); err != nil {
				b.logger.Warn("Failed to send reply", "chat_id", chatID, "error", err)
			}
		}
	}
}

// handleCommand routes one command to its handler and returns the reply text.
func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) string {
	b.logger.Info("Command received", "chat_id", chatID, "command", command)

	subscriberID := strconv.FormatInt(chatID, 10)

	switch command {
	case "subscribe":
		return b.handleSubscribe(ctx, subscriberID, args)
	case "unsubscribe":
		return b.handleUnsubscribe(ctx, subscriberID, args)
	case "subscriptions":
		return b.handleSubscriptions(ctx, subscriberID)
	case "products":
		return b.handleProducts(ctx)
	case "help", "start":
		return b.handleHelp(chatID)
	}

	switch command {
	case "addproduct", "removeproduct", "toggle", "setstatus", "check", "checkall", "reset":
	default:
		return "" // unknown commands are ignored
	}

	if !b.isAdmin(chatID) {
		return "🚫 You do not have permission to use this command."
	}

	switch command {
	case "addproduct":
		return b.handleAddProduct(ctx, args)
	case "removeproduct":
		return b.handleRemoveProduct(ctx, args)
	case "toggle":
		return b.handleToggle(ctx, args)
	case "setstatus":
		return b.handleSetStatus(ctx, args)
	case "check":
		return b.handleCheck(ctx, args)
	case "checkall":
		return b.handleCheckAll(ctx)
	case "reset":
		return b.handleReset(ctx)
	}
	return ""
}
