package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"restock-notifier/pkg/restock"
)

type fakeAPI struct {
	err  error
	sent []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func testAlert() *restock.Alert {
	return &restock.Alert{
		ProductID:   "target_scarlet_booster_box",
		ProductName: "Scarlet Booster Box",
		StoreName:   "Target",
		ProductURL:  "https://example.com/p",
		CheckoutURL: "https://example.com/p/checkout",
		RestockedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func newTestNotifier(api API) *Notifier {
	return New(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDeliver(t *testing.T) {
	api := &fakeAPI{}
	n := newTestNotifier(api)

	if err := n.Deliver(context.Background(), "123456", testAlert()); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(api.sent))
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", api.sent[0])
	}
	if msg.ChatID != 123456 {
		t.Errorf("chat id = %d, want 123456", msg.ChatID)
	}
	if msg.ParseMode != "Markdown" {
		t.Errorf("parse mode = %q, want Markdown", msg.ParseMode)
	}
}

func TestDeliverBadSubscriberID(t *testing.T) {
	n := newTestNotifier(&fakeAPI{})
	if err := n.Deliver(context.Background(), "not-a-chat-id", testAlert()); err == nil {
		t.Fatal("Deliver() should reject a non-numeric subscriber id")
	}
}

func TestDeliverForbidden(t *testing.T) {
	forbidden := []string{
		"Forbidden: bot can't send messages to bots",
		"Forbidden: bot was blocked by the user",
		"Forbidden: bot was kicked from the group chat",
	}
	for _, s := range forbidden {
		n := newTestNotifier(&fakeAPI{err: errors.New(s)})
		err := n.Deliver(context.Background(), "123", testAlert())
		if !errors.Is(err, restock.ErrPermissionDenied) {
			t.Errorf("error %q not mapped to ErrPermissionDenied, got %v", s, err)
		}
	}
}

func TestDeliverTransientError(t *testing.T) {
	n := newTestNotifier(&fakeAPI{err: errors.New("Bad Gateway")})
	err := n.Deliver(context.Background(), "123", testAlert())
	if err == nil {
		t.Fatal("Deliver() should surface transient errors")
	}
	if errors.Is(err, restock.ErrPermissionDenied) {
		t.Error("transient error misclassified as permission denied")
	}
}

func TestFormatAlert(t *testing.T) {
	text := FormatAlert(testAlert())

	for _, want := range []string{
		"RESTOCK ALERT",
		"Scarlet Booster Box",
		"Target",
		"2026-03-14 09:00:00 UTC",
		"[Product page](https://example.com/p)",
		"[Buy now](https://example.com/p/checkout)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("FormatAlert() missing %q:\n%s", want, text)
		}
	}
}
