// Package store persists products and subscriptions in Firestore.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"restock-notifier/pkg/restock"
)

const (
	collectionProducts      = "monitored_products"
	collectionSubscriptions = "subscriptions"
)

// Store wraps the Firestore client. Per-document updates are atomic, which is
// all the monitor relies on; there are no cross-document transactions here.
type Store struct {
	client *firestore.Client
	logger *slog.Logger
}

// New creates a store around an initialized Firestore client.
func New(client *firestore.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) products() *firestore.CollectionRef {
	return s.client.Collection(collectionProducts)
}

func (s *Store) subscriptions() *firestore.CollectionRef {
	return s.client.Collection(collectionSubscriptions)
}

func productFromDoc(doc *firestore.DocumentSnapshot) (*restock.Product, error) {
	var p restock.Product
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", doc.Ref.ID, err)
	}
	p.ID = doc.Ref.ID
	return &p, nil
}

// Product loads one product by ID. Returns restock.ErrNotFound when absent.
func (s *Store) Product(ctx context.Context, id string) (*restock.Product, error) {
	doc, err := s.products().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, restock.ErrNotFound
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return productFromDoc(doc)
}

// ProductByName finds a product by its exact name. Returns restock.ErrNotFound
// when no product matches.
func (s *Store) ProductByName(ctx context.Context, name string) (*restock.Product, error) {
	iter := s.products().Where("name", "==", name).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, restock.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by name: %w", err)
	}
	return productFromDoc(doc)
}

// ActiveProducts lists every product with monitoring enabled.
func (s *Store) ActiveProducts(ctx context.Context) ([]*restock.Product, error) {
	return s.queryProducts(s.products().Where("is_active", "==", true).Documents(ctx))
}

// AllProducts lists every product, ordered by name.
func (s *Store) AllProducts(ctx context.Context) ([]*restock.Product, error) {
	return s.queryProducts(s.products().OrderBy("name", firestore.Asc).Documents(ctx))
}

func (s *Store) queryProducts(iter *firestore.DocumentIterator) ([]*restock.Product, error) {
	defer iter.Stop()

	var products []*restock.Product
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate products: %w", err)
		}

		p, err := productFromDoc(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// CreateProduct stores a new product under a generated ID derived from the
// store and product names, suffixed when the base ID is taken. Returns the
// assigned ID.
func (s *Store) CreateProduct(ctx context.Context, p *restock.Product) (string, error) {
	base := productDocID(p.StoreName, p.Name)
	id := base
	for n := 1; ; n++ {
		_, err := s.products().Doc(id).Get(ctx)
		if status.Code(err) == codes.NotFound {
			break
		}
		if err != nil {
			return "", fmt.Errorf("check product id %s: %w", id, err)
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}

	p.ID = id
	if _, err := s.products().Doc(id).Set(ctx, p); err != nil {
		return "", fmt.Errorf("create product %s: %w", id, err)
	}

	s.logger.Info("Product created", "product_id", id, "name", p.Name, "store", p.StoreName)
	return id, nil
}

// productDocID builds a stable document ID from store and product names.
func productDocID(storeName, name string) string {
	clean := func(v string) string {
		v = strings.ToLower(strings.TrimSpace(v))
		v = strings.ReplaceAll(v, " ", "_")
		return strings.ReplaceAll(v, ".", "")
	}
	return clean(storeName) + "_" + clean(name)
}

// SetProductActive toggles monitoring for a product.
func (s *Store) SetProductActive(ctx context.Context, id string, active bool) error {
	_, err := s.products().Doc(id).Update(ctx, []firestore.Update{
		{Path: "is_active", Value: active},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return restock.ErrNotFound
		}
		return fmt.Errorf("set product %s active=%v: %w", id, active, err)
	}
	return nil
}

// SetProductStatus manually overrides a product's status. The hysteresis
// counter is reset so a manual override behaves like a fresh observation.
func (s *Store) SetProductStatus(ctx context.Context, id string, st restock.Status) error {
	counter := 0
	if st == restock.StatusOutOfStock {
		counter = 1
	}
	_, err := s.products().Doc(id).Update(ctx, []firestore.Update{
		{Path: "last_stock_status", Value: string(st)},
		{Path: "consecutive_out_of_stock_checks", Value: counter},
		{Path: "last_checked", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return restock.ErrNotFound
		}
		return fmt.Errorf("set product %s status: %w", id, err)
	}
	return nil
}

// UpdateProductCheck persists one cycle's outcome for a product.
func (s *Store) UpdateProductCheck(ctx context.Context, id string, upd restock.CheckUpdate) error {
	updates := []firestore.Update{
		{Path: "last_stock_status", Value: string(upd.Status)},
		{Path: "consecutive_out_of_stock_checks", Value: upd.ConsecutiveOOS},
		{Path: "last_checked", Value: upd.CheckedAt},
	}
	if upd.RestockedAt != nil {
		updates = append(updates, firestore.Update{Path: "last_restock_time", Value: *upd.RestockedAt})
	}

	if _, err := s.products().Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			// Product deleted mid-cycle; nothing left to advance.
			return restock.ErrNotFound
		}
		return fmt.Errorf("update product %s check: %w", id, err)
	}
	return nil
}

// ResetAllStatuses batch-resets every product to out_of_stock. Returns the
// number of products written.
func (s *Store) ResetAllStatuses(ctx context.Context) (int, error) {
	iter := s.products().Documents(ctx)
	defer iter.Stop()

	batch := s.client.Batch()
	now := time.Now().UTC()
	count := 0

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("iterate products: %w", err)
		}

		batch.Update(doc.Ref, []firestore.Update{
			{Path: "last_stock_status", Value: string(restock.StatusOutOfStock)},
			{Path: "consecutive_out_of_stock_checks", Value: 0},
			{Path: "last_checked", Value: now},
		})
		count++
	}

	if count == 0 {
		return 0, nil
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit status reset: %w", err)
	}

	s.logger.Info("All product statuses reset", "count", count)
	return count, nil
}

// DeleteProduct removes a product and cascades: the ID is removed from every
// subscription's product list and notified-timestamp map. A subscription whose
// explicit list is emptied by the removal flips to the all-products
// preference.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.Product(ctx, id); err != nil {
		return err
	}

	if _, err := s.products().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	iter := s.subscriptions().Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("iterate subscriptions: %w", err)
		}

		var sub restock.Subscription
		if err := doc.DataTo(&sub); err != nil {
			return fmt.Errorf("decode subscription %s: %w", doc.Ref.ID, err)
		}

		var updates []firestore.Update
		if sub.SubscribedTo(id) {
			remaining := removeID(sub.ProductIDs, id)
			updates = append(updates,
				firestore.Update{Path: "subscribed_product_ids", Value: remaining},
				firestore.Update{Path: "notification_preference", Value: string(preferenceAfterRemoval(remaining))},
			)
		}
		if _, ok := sub.LastNotified[id]; ok {
			updates = append(updates, firestore.Update{
				FieldPath: firestore.FieldPath{"last_notified_timestamps", id},
				Value:     firestore.Delete,
			})
		}
		if len(updates) == 0 {
			continue
		}

		if _, err := doc.Ref.Update(ctx, updates); err != nil {
			return fmt.Errorf("cascade delete to subscription %s: %w", doc.Ref.ID, err)
		}
	}

	s.logger.Info("Product deleted", "product_id", id)
	return nil
}

func removeID(ids []string, id string) []string {
	remaining := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			remaining = append(remaining, v)
		}
	}
	return remaining
}

// preferenceAfterRemoval mirrors the removal policy: a subscription left with
// an empty explicit list falls back to following all products.
func preferenceAfterRemoval(remaining []string) restock.Preference {
	if len(remaining) == 0 {
		return restock.PreferenceAll
	}
	return restock.PreferenceSpecific
}
