package monitor

import (
	"time"

	"restock-notifier/pkg/restock"
)

// DefaultThreshold is the number of consecutive out-of-stock checks a product
// must accumulate before a flip back to in-stock counts as a restock.
const DefaultThreshold = 2

// Outcome is the result of evaluating one check against the prior state.
type Outcome struct {
	Status         restock.Status
	ConsecutiveOOS int
	Restocked      bool
}

// Transition applies one classified status to a product's persisted state.
// prevOOS is the counter value before this cycle; the returned counter is the
// value to persist. A restock fires only when the product flips from a
// confirmed out-of-stock run (prevOOS >= threshold) straight to in-stock.
// An unknown read leaves the counter untouched: it neither confirms the
// shortage nor resets the evidence.
func Transition(prev, cur restock.Status, prevOOS, threshold int) Outcome {
	out := Outcome{Status: cur, ConsecutiveOOS: prevOOS}

	switch cur {
	case restock.StatusOutOfStock:
		out.ConsecutiveOOS = prevOOS + 1
	case restock.StatusInStock:
		out.ConsecutiveOOS = 0
		out.Restocked = prev == restock.StatusOutOfStock && prevOOS >= threshold
	}

	return out
}

// ShouldNotify is the per-subscriber dedup gate: notify only when the
// subscriber has never been told about this product, or its recorded
// notification is strictly older than the restock being announced. Callers
// must record restockedAt itself (not the send time) after a confirmed
// delivery so the comparison stays exact across cycles and restarts.
func ShouldNotify(sub *restock.Subscription, productID string, restockedAt time.Time) bool {
	last, ok := sub.LastNotified[productID]
	if !ok {
		return true
	}
	return last.Before(restockedAt)
}
