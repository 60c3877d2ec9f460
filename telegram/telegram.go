// Package telegram delivers restock alerts to Telegram chats.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"restock-notifier/pkg/restock"
)

// API is the slice of the bot client the notifier needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends alerts through the Telegram Bot API.
type Notifier struct {
	api    API
	logger *slog.Logger
}

// New creates a notifier around a connected bot client.
func New(api API, logger *slog.Logger) *Notifier {
	return &Notifier{api: api, logger: logger}
}

// Deliver sends one alert to one chat. A chat that has blocked the bot or
// revoked its access surfaces as restock.ErrPermissionDenied; anything else
// is a transient failure, retried only when a later restock fires.
func (n *Notifier) Deliver(ctx context.Context, subscriberID string, alert *restock.Alert) error {
	chatID, err := strconv.ParseInt(subscriberID, 10, 64)
	if err != nil {
		return fmt.Errorf("subscriber id %q is not a chat id: %w", subscriberID, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, FormatAlert(alert))
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		if isForbidden(err) {
			return fmt.Errorf("chat %d: %w", chatID, restock.ErrPermissionDenied)
		}
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}

	n.logger.Info("Alert delivered",
		"chat_id", chatID,
		"product_id", alert.ProductID,
		"restocked_at", alert.RestockedAt.Format(time.RFC3339))
	return nil
}

// isForbidden recognizes the Bot API's access-revoked responses. The v4
// client only exposes them through the error string.
func isForbidden(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Forbidden") ||
		strings.Contains(s, "bot was blocked") ||
		strings.Contains(s, "bot was kicked")
}

// FormatAlert renders the alert as a Markdown message.
func FormatAlert(a *restock.Alert) string {
	var b strings.Builder
	b.WriteString("🚨 *RESTOCK ALERT* 🚨\n\n")
	fmt.Fprintf(&b, "*%s*\n", a.ProductName)
	fmt.Fprintf(&b, "Store: %s\n", a.StoreName)
	fmt.Fprintf(&b, "Restocked: %s\n\n", a.RestockedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "🔗 [Product page](%s)\n", a.ProductURL)
	fmt.Fprintf(&b, "🛒 [Buy now](%s)", a.CheckoutURL)
	return b.String()
}
