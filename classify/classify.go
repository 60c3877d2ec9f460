// Package classify turns fetched page markup into a stock status.
package classify

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"restock-notifier/pkg/restock"
)

// Policy selects the classification strategy for a store. The set is closed:
// every store maps to exactly one of these.
type Policy int

const (
	// PolicyGeneric matches a single configured element against an expected
	// in-stock string.
	PolicyGeneric Policy = iota
	// PolicyScored accumulates independent in-stock indicators across the
	// whole page, for stores without a single reliable stock element.
	PolicyScored
)

// Rule is the per-product classification input.
type Rule struct {
	Policy      Policy
	Selector    string
	InStockText string
}

// Registry maps normalized store names to policies. Stores not present use
// PolicyGeneric.
type Registry struct {
	scored map[string]bool
}

// NewRegistry builds a registry assigning PolicyScored to the given stores.
func NewRegistry(scoredStores []string) *Registry {
	scored := make(map[string]bool, len(scoredStores))
	for _, name := range scoredStores {
		scored[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return &Registry{scored: scored}
}

// PolicyFor returns the policy assigned to storeName.
func (r *Registry) PolicyFor(storeName string) Policy {
	if r.scored[strings.ToLower(strings.TrimSpace(storeName))] {
		return PolicyScored
	}
	return PolicyGeneric
}

// RuleFor builds the classification rule for a product.
func (r *Registry) RuleFor(p *restock.Product) Rule {
	return Rule{
		Policy:      r.PolicyFor(p.StoreName),
		Selector:    p.Selector,
		InStockText: p.InStockText,
	}
}

// Phrases that mark a page out of stock regardless of any positive signal.
var outOfStockPhrases = []string{
	"sold out",
	"out of stock",
	"currently unavailable",
	"temporarily out of stock",
	"not available",
}

// Element attributes checked for the expected in-stock text under the
// generic policy, in addition to the element's text content.
var stockAttrs = []string{"class", "data-stock", "data-status"}

// Selectors for the scored policy's positive indicators.
const (
	purchaseButtonSelector = "button[data-test='shipItButton'], button.btn-primary"
	priceSelector          = "[data-test='product-price'], .styles__CurrentPriceContainer-sc-z5703i-0, .style__PriceFontSize-sc-__sc-13aaghm-0"
	fulfillmentSelector    = "[data-test='fulfillment-section']"
)

// Classify parses markup and decides the stock status under rule. It never
// fails: empty or unparseable markup and missing elements all yield
// StatusUnknown.
func Classify(markup string, rule Rule) restock.Status {
	if strings.TrimSpace(markup) == "" {
		return restock.StatusUnknown
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return restock.StatusUnknown
	}

	switch rule.Policy {
	case PolicyScored:
		return classifyScored(doc)
	default:
		return classifyGeneric(doc, rule)
	}
}

func classifyGeneric(doc *goquery.Document, rule Rule) restock.Status {
	if rule.Selector == "" {
		return restock.StatusUnknown
	}

	sel := doc.Find(rule.Selector).First()
	if sel.Length() == 0 {
		return restock.StatusUnknown
	}

	want := strings.ToLower(rule.InStockText)
	if want == "" {
		return restock.StatusUnknown
	}

	if strings.Contains(strings.ToLower(strings.TrimSpace(sel.Text())), want) {
		return restock.StatusInStock
	}
	for _, attr := range stockAttrs {
		if val, ok := sel.Attr(attr); ok && strings.Contains(strings.ToLower(val), want) {
			return restock.StatusInStock
		}
	}

	// Element present but the expected marker is not: treat as out of stock.
	return restock.StatusOutOfStock
}

func classifyScored(doc *goquery.Document) restock.Status {
	pageText := strings.ToLower(doc.Text())

	// Negative evidence always wins.
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(pageText, phrase) {
			return restock.StatusOutOfStock
		}
	}

	score := 0

	if strings.Contains(pageText, "add to cart") {
		score++
	}

	actionable := false
	doc.Find(purchaseButtonSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if strings.Contains(text, "add") && strings.Contains(text, "cart") {
			actionable = true
			return false
		}
		return true
	})
	if actionable {
		score++
	}

	if doc.Find(priceSelector).Length() > 0 {
		score++
	}

	if doc.Find(fulfillmentSelector).Length() > 0 {
		score++
	}

	// A single indicator is not enough evidence to call a restock.
	if score >= 2 {
		return restock.StatusInStock
	}
	return restock.StatusOutOfStock
}
