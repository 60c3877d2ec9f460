package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"restock-notifier/pkg/restock"
)

func subscriptionFromDoc(doc *firestore.DocumentSnapshot) (*restock.Subscription, error) {
	var sub restock.Subscription
	if err := doc.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("decode subscription %s: %w", doc.Ref.ID, err)
	}
	sub.ID = doc.Ref.ID
	return &sub, nil
}

// Subscription loads one subscription by chat ID. Returns restock.ErrNotFound
// when the chat has never subscribed.
func (s *Store) Subscription(ctx context.Context, id string) (*restock.Subscription, error) {
	doc, err := s.subscriptions().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, restock.ErrNotFound
		}
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return subscriptionFromDoc(doc)
}

// EnsureSubscription returns the subscription for a chat, creating an empty
// one on first contact.
func (s *Store) EnsureSubscription(ctx context.Context, id string) (*restock.Subscription, error) {
	sub, err := s.Subscription(ctx, id)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, restock.ErrNotFound) {
		return nil, err
	}

	sub = &restock.Subscription{
		ID:           id,
		ProductIDs:   []string{},
		Preference:   restock.PreferenceSpecific,
		LastNotified: map[string]time.Time{},
	}
	if _, err := s.subscriptions().Doc(id).Set(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription %s: %w", id, err)
	}

	s.logger.Info("Subscription created", "subscriber_id", id)
	return sub, nil
}

// Subscribe adds a product to a chat's explicit list and pins the preference
// to specific products.
func (s *Store) Subscribe(ctx context.Context, subscriberID, productID string) error {
	sub, err := s.EnsureSubscription(ctx, subscriberID)
	if err != nil {
		return err
	}
	if sub.SubscribedTo(productID) {
		return nil
	}

	_, err = s.subscriptions().Doc(subscriberID).Update(ctx, []firestore.Update{
		{Path: "subscribed_product_ids", Value: firestore.ArrayUnion(productID)},
		{Path: "notification_preference", Value: string(restock.PreferenceSpecific)},
	})
	if err != nil {
		return fmt.Errorf("subscribe %s to %s: %w", subscriberID, productID, err)
	}
	return nil
}

// SubscribeAll switches a chat to the all-products preference. The explicit
// list is left in place; resolution ignores it while the preference holds.
func (s *Store) SubscribeAll(ctx context.Context, subscriberID string) error {
	if _, err := s.EnsureSubscription(ctx, subscriberID); err != nil {
		return err
	}

	_, err := s.subscriptions().Doc(subscriberID).Update(ctx, []firestore.Update{
		{Path: "notification_preference", Value: string(restock.PreferenceAll)},
	})
	if err != nil {
		return fmt.Errorf("subscribe %s to all products: %w", subscriberID, err)
	}
	return nil
}

// Unsubscribe removes one product from a chat's explicit list. Emptying the
// list flips the preference to all products, matching the removal policy.
func (s *Store) Unsubscribe(ctx context.Context, subscriberID, productID string) error {
	sub, err := s.Subscription(ctx, subscriberID)
	if err != nil {
		return err
	}

	remaining := removeID(sub.ProductIDs, productID)
	_, err = s.subscriptions().Doc(subscriberID).Update(ctx, []firestore.Update{
		{Path: "subscribed_product_ids", Value: remaining},
		{Path: "notification_preference", Value: string(preferenceAfterRemoval(remaining))},
	})
	if err != nil {
		return fmt.Errorf("unsubscribe %s from %s: %w", subscriberID, productID, err)
	}
	return nil
}

// UnsubscribeAll clears a chat's subscriptions entirely.
func (s *Store) UnsubscribeAll(ctx context.Context, subscriberID string) error {
	if _, err := s.Subscription(ctx, subscriberID); err != nil {
		return err
	}

	_, err := s.subscriptions().Doc(subscriberID).Update(ctx, []firestore.Update{
		{Path: "subscribed_product_ids", Value: []string{}},
		{Path: "notification_preference", Value: string(restock.PreferenceSpecific)},
	})
	if err != nil {
		return fmt.Errorf("unsubscribe %s from all: %w", subscriberID, err)
	}
	return nil
}

// SubscribersFor resolves the notification targets for a product: the union
// of subscriptions explicitly listing it and subscriptions following all
// products, deduplicated by chat ID.
func (s *Store) SubscribersFor(ctx context.Context, productID string) ([]*restock.Subscription, error) {
	seen := make(map[string]bool)
	var subs []*restock.Subscription

	collect := func(iter *firestore.DocumentIterator) error {
		defer iter.Stop()
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				return nil
			}
			if err != nil {
				return err
			}
			if seen[doc.Ref.ID] {
				continue
			}
			seen[doc.Ref.ID] = true

			sub, err := subscriptionFromDoc(doc)
			if err != nil {
				return err
			}
			subs = append(subs, sub)
		}
	}

	specific := s.subscriptions().Where("subscribed_product_ids", "array-contains", productID).Documents(ctx)
	if err := collect(specific); err != nil {
		return nil, fmt.Errorf("query explicit subscribers for %s: %w", productID, err)
	}

	all := s.subscriptions().Where("notification_preference", "==", string(restock.PreferenceAll)).Documents(ctx)
	if err := collect(all); err != nil {
		return nil, fmt.Errorf("query all-products subscribers: %w", err)
	}

	return subs, nil
}

// MarkNotified records the restock instant a subscriber was alerted about.
// The event timestamp is written verbatim so later gate comparisons are exact.
func (s *Store) MarkNotified(ctx context.Context, subscriberID, productID string, restockedAt time.Time) error {
	_, err := s.subscriptions().Doc(subscriberID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"last_notified_timestamps", productID}, Value: restockedAt},
	})
	if err != nil {
		return fmt.Errorf("mark %s notified for %s: %w", subscriberID, productID, err)
	}
	return nil
}
