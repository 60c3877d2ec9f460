// Package monitor drives the restock detection cycle: fetch, classify,
// evaluate the state machine, and fan out notifications to subscribers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"restock-notifier/classify"
	"restock-notifier/pkg/restock"
)

// Fetcher fetches page markup for a product URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, requiresJS bool) (string, error)
}

// Store is the persistence surface the monitor needs.
type Store interface {
	ActiveProducts(ctx context.Context) ([]*restock.Product, error)
	UpdateProductCheck(ctx context.Context, productID string, upd restock.CheckUpdate) error
	SubscribersFor(ctx context.Context, productID string) ([]*restock.Subscription, error)
	MarkNotified(ctx context.Context, subscriberID, productID string, restockedAt time.Time) error
}

// Notifier delivers one alert to one subscriber.
type Notifier interface {
	Deliver(ctx context.Context, subscriberID string, alert *restock.Alert) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThreshold overrides the hysteresis threshold.
func WithThreshold(n int) Option {
	return func(m *Monitor) { m.threshold = n }
}

// WithPacing overrides the delay inserted between products within a cycle.
func WithPacing(d time.Duration) Option {
	return func(m *Monitor) { m.pacing = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor runs monitoring cycles over all active products.
type Monitor struct {
	fetcher  Fetcher
	store    Store
	notifier Notifier
	registry *classify.Registry
	logger   *slog.Logger

	threshold int
	pacing    time.Duration
	now       func() time.Time
}

// New creates a monitor with the default threshold and pacing.
func New(fetcher Fetcher, store Store, notifier Notifier, registry *classify.Registry, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		fetcher:   fetcher,
		store:     store,
		notifier:  notifier,
		registry:  registry,
		logger:    logger,
		threshold: DefaultThreshold,
		pacing:    5 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes cycles on a fixed interval until ctx is cancelled. The first
// cycle starts immediately. Cycles never overlap: the ticker is only read
// between cycles.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := m.CheckAll(ctx); err != nil {
		m.logger.Warn("Monitoring cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.CheckAll(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				m.logger.Warn("Monitoring cycle failed", "error", err)
			}
		}
	}
}

// CheckAll runs one full pass over all active products, sequentially, with
// the configured pacing delay between products.
func (m *Monitor) CheckAll(ctx context.Context) error {
	start := m.now()

	products, err := m.store.ActiveProducts(ctx)
	if err != nil {
		return fmt.Errorf("list active products: %w", err)
	}

	m.logger.Info("Starting monitoring cycle", "products", len(products))

	for i, product := range products {
		select {
		case <-ctx.Done():
			m.logger.Info("Context cancelled, stopping cycle", "error", ctx.Err())
			return ctx.Err()
		default:
		}

		if i > 0 && m.pacing > 0 {
			// Bound the outbound request rate to any single site.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.pacing):
			}
		}

		m.checkProduct(ctx, product)
	}

	m.logger.Info("Monitoring cycle finished",
		"products", len(products),
		"elapsed", m.now().Sub(start).Round(time.Millisecond).String())

	return nil
}

// checkProduct runs one product through classify, the state machine, and, if
// a restock fired, the fan-out. All failures are contained here: a bad fetch
// classifies as unknown, and a failed persist leaves the product to be
// re-evaluated next cycle from its last known good state.
func (m *Monitor) checkProduct(ctx context.Context, product *restock.Product) {
	cur := m.Classify(ctx, product)

	out := Transition(product.LastStatus, cur, product.ConsecutiveOOS, m.threshold)

	m.logger.Info("Product checked",
		"product_id", product.ID,
		"name", product.Name,
		"status", string(cur),
		"previous", string(product.LastStatus),
		"consecutive_oos", out.ConsecutiveOOS,
		"restocked", out.Restocked)

	upd := restock.CheckUpdate{
		Status:         out.Status,
		ConsecutiveOOS: out.ConsecutiveOOS,
		CheckedAt:      m.now(),
	}

	if out.Restocked {
		restockedAt := m.now()
		upd.RestockedAt = &restockedAt

		alert := &restock.Alert{
			ProductID:   product.ID,
			ProductName: product.Name,
			StoreName:   product.StoreName,
			ProductURL:  product.URL,
			CheckoutURL: product.CheckoutURL,
			RestockedAt: restockedAt,
		}
		m.fanOut(ctx, alert)
	}

	if err := m.store.UpdateProductCheck(ctx, product.ID, upd); err != nil {
		m.logger.Warn("Failed to persist product check, will re-evaluate next cycle",
			"product_id", product.ID, "error", err)
	}
}

// Classify fetches and classifies a product page. Fetch failures surface as
// StatusUnknown, never as an error.
func (m *Monitor) Classify(ctx context.Context, product *restock.Product) restock.Status {
	markup, err := m.fetcher.Fetch(ctx, product.URL, product.RequiresJS)
	if err != nil {
		m.logger.Warn("Fetch failed, treating status as unknown",
			"product_id", product.ID, "url", product.URL, "error", err)
		return restock.StatusUnknown
	}
	return classify.Classify(markup, m.registry.RuleFor(product))
}

// fanOut resolves subscribers for the alert's product, filters each through
// the dedup gate, and attempts delivery. One subscriber's failure never
// blocks the rest; the dedup timestamp advances only on confirmed delivery.
func (m *Monitor) fanOut(ctx context.Context, alert *restock.Alert) {
	m.logger.Info("Restock detected", "product_id", alert.ProductID, "name", alert.ProductName)

	subs, err := m.store.SubscribersFor(ctx, alert.ProductID)
	if err != nil {
		m.logger.Warn("Failed to resolve subscribers", "product_id", alert.ProductID, "error", err)
		return
	}

	var sent, skipped int
	for _, sub := range subs {
		if !ShouldNotify(sub, alert.ProductID, alert.RestockedAt) {
			skipped++
			continue
		}

		if err := m.notifier.Deliver(ctx, sub.ID, alert); err != nil {
			if errors.Is(err, restock.ErrPermissionDenied) {
				m.logger.Warn("Delivery not permitted", "subscriber_id", sub.ID, "product_id", alert.ProductID)
			} else {
				m.logger.Warn("Delivery failed, will retry on the next restock",
					"subscriber_id", sub.ID, "product_id", alert.ProductID, "error", err)
			}
			continue
		}

		if err := m.store.MarkNotified(ctx, sub.ID, alert.ProductID, alert.RestockedAt); err != nil {
			m.logger.Warn("Failed to record notification timestamp",
				"subscriber_id", sub.ID, "product_id", alert.ProductID, "error", err)
			continue
		}
		sent++
	}

	m.logger.Info("Fan-out complete",
		"product_id", alert.ProductID,
		"subscribers", len(subs),
		"sent", sent,
		"already_notified", skipped)
}
