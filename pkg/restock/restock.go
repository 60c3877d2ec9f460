// Package restock holds the domain types shared across the monitor, store,
// classifier, and delivery packages.
package restock

import (
	"errors"
	"time"
)

// Status is the classified stock state of a product page.
type Status string

const (
	StatusInStock    Status = "in_stock"
	StatusOutOfStock Status = "out_of_stock"
	StatusUnknown    Status = "unknown"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInStock, StatusOutOfStock, StatusUnknown:
		return true
	}
	return false
}

// Preference selects how a subscription resolves against products.
type Preference string

const (
	// PreferenceSpecific notifies only for products listed in ProductIDs.
	PreferenceSpecific Preference = "specific_products"
	// PreferenceAll notifies for every active product, regardless of ProductIDs.
	PreferenceAll Preference = "all_products"
)

// Sentinel errors shared between the store, delivery, and command layers.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// Product is a monitored retail item.
type Product struct {
	ID          string `firestore:"-"`
	Name        string `firestore:"name"`
	StoreName   string `firestore:"store_name"`
	URL         string `firestore:"url"`
	CheckoutURL string `firestore:"checkout_url"`

	// Generic-policy matching rule. Ignored for stores assigned the
	// scored-heuristic policy.
	Selector    string `firestore:"css_selector_for_stock"`
	InStockText string `firestore:"expected_in_stock_text"`

	RequiresJS bool `firestore:"requires_javascript"`
	Active     bool `firestore:"is_active"`

	LastStatus     Status     `firestore:"last_stock_status"`
	ConsecutiveOOS int        `firestore:"consecutive_out_of_stock_checks"`
	LastChecked    time.Time  `firestore:"last_checked"`
	LastRestock    *time.Time `firestore:"last_restock_time"`
}

// Subscription is one notification target (a chat) keyed by its chat ID.
type Subscription struct {
	ID           string               `firestore:"-"`
	ProductIDs   []string             `firestore:"subscribed_product_ids"`
	Preference   Preference           `firestore:"notification_preference"`
	LastNotified map[string]time.Time `firestore:"last_notified_timestamps"`
}

// SubscribedTo reports whether the subscription lists productID explicitly.
func (s *Subscription) SubscribedTo(productID string) bool {
	for _, id := range s.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// Alert is the structured notification delivered for one restock event.
type Alert struct {
	ProductID   string
	ProductName string
	StoreName   string
	ProductURL  string
	CheckoutURL string
	RestockedAt time.Time
}

// CheckUpdate carries the per-cycle product mutations the orchestrator
// persists after every check, whether or not an event fired.
type CheckUpdate struct {
	Status         Status
	ConsecutiveOOS int
	CheckedAt      time.Time
	RestockedAt    *time.Time // set only when a restock event fired this cycle
}
