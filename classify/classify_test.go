package classify

import (
	"testing"

	"restock-notifier/pkg/restock"
)

func genericRule() Rule {
	return Rule{
		Policy:      PolicyGeneric,
		Selector:    "div.stock",
		InStockText: "In Stock",
	}
}

func TestClassifyGeneric(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   restock.Status
	}{
		{
			name:   "expected text in element",
			markup: `<html><body><div class="stock">Currently In Stock!</div></body></html>`,
			want:   restock.StatusInStock,
		},
		{
			name:   "case insensitive text match",
			markup: `<html><body><div class="stock">in stock</div></body></html>`,
			want:   restock.StatusInStock,
		},
		{
			name:   "expected text in class attribute",
			markup: `<html><body><div class="stock In Stock available">Buy now</div></body></html>`,
			want:   restock.StatusInStock,
		},
		{
			name:   "hyphenated class token does not match",
			markup: `<html><body><div class="stock in-stock-badge">Buy now</div></body></html>`,
			want:   restock.StatusOutOfStock,
		},
		{
			name:   "expected text in data-stock attribute",
			markup: `<html><body><div class="stock" data-stock="IN STOCK">42</div></body></html>`,
			want:   restock.StatusInStock,
		},
		{
			name:   "expected text in data-status attribute",
			markup: `<html><body><div class="stock" data-status="item in stock today"></div></body></html>`,
			want:   restock.StatusInStock,
		},
		{
			name:   "element present without marker",
			markup: `<html><body><div class="stock">Sold Out</div></body></html>`,
			want:   restock.StatusOutOfStock,
		},
		{
			name:   "element absent",
			markup: `<html><body><p>nothing here</p></body></html>`,
			want:   restock.StatusUnknown,
		},
		{
			name:   "empty markup",
			markup: "",
			want:   restock.StatusUnknown,
		},
		{
			name:   "whitespace markup",
			markup: "   \n\t  ",
			want:   restock.StatusUnknown,
		},
		{
			name:   "truncated markup still parses leniently",
			markup: `<div class="stock">In Stock`,
			want:   restock.StatusInStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.markup, genericRule())
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("Classify() returned status outside the known set: %q", got)
			}
		})
	}
}

func TestClassifyGenericMissingRuleFields(t *testing.T) {
	markup := `<html><body><div class="stock">In Stock</div></body></html>`

	if got := Classify(markup, Rule{Policy: PolicyGeneric}); got != restock.StatusUnknown {
		t.Errorf("empty selector: got %q, want %q", got, restock.StatusUnknown)
	}

	rule := Rule{Policy: PolicyGeneric, Selector: "div.stock"}
	if got := Classify(markup, rule); got != restock.StatusUnknown {
		t.Errorf("empty expected text: got %q, want %q", got, restock.StatusUnknown)
	}
}

func TestClassifyScored(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   restock.Status
	}{
		{
			name: "negative phrase beats positive indicators",
			markup: `<html><body>
				<p>Add to cart</p>
				<button class="btn-primary">Add to Cart</button>
				<span data-test="product-price">$49.99</span>
				<p>Currently unavailable</p>
			</body></html>`,
			want: restock.StatusOutOfStock,
		},
		{
			name:   "sold out short circuits",
			markup: `<html><body><h1>SOLD OUT</h1><span data-test="product-price">$9.99</span></body></html>`,
			want:   restock.StatusOutOfStock,
		},
		{
			name:   "no indicators",
			markup: `<html><body><p>Pokemon Scarlet Booster Box</p></body></html>`,
			want:   restock.StatusOutOfStock,
		},
		{
			name:   "single indicator is not enough",
			markup: `<html><body><span data-test="product-price">$129.00</span></body></html>`,
			want:   restock.StatusOutOfStock,
		},
		{
			name: "text plus button",
			markup: `<html><body>
				<button data-test="shipItButton">Add to cart</button>
			</body></html>`,
			want: restock.StatusInStock,
		},
		{
			name: "price plus fulfillment",
			markup: `<html><body>
				<span data-test="product-price">$39.99</span>
				<div data-test="fulfillment-section">Ship it</div>
			</body></html>`,
			want: restock.StatusInStock,
		},
		{
			name: "all four indicators",
			markup: `<html><body>
				<p>add to cart</p>
				<button class="btn-primary">Add to Cart</button>
				<span data-test="product-price">$19.99</span>
				<div data-test="fulfillment-section">Pickup</div>
			</body></html>`,
			want: restock.StatusInStock,
		},
		{
			name: "button without cart text does not count",
			markup: `<html><body>
				<button class="btn-primary">Notify me</button>
				<span data-test="product-price">$59.99</span>
			</body></html>`,
			want: restock.StatusOutOfStock,
		},
		{
			name:   "empty markup",
			markup: "",
			want:   restock.StatusUnknown,
		},
	}

	rule := Rule{Policy: PolicyScored}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.markup, rule); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryPolicyFor(t *testing.T) {
	r := NewRegistry([]string{"Target", " bestbuy "})

	tests := []struct {
		store string
		want  Policy
	}{
		{"target", PolicyScored},
		{"TARGET", PolicyScored},
		{"BestBuy", PolicyScored},
		{"walmart", PolicyGeneric},
		{"", PolicyGeneric},
	}

	for _, tt := range tests {
		if got := r.PolicyFor(tt.store); got != tt.want {
			t.Errorf("PolicyFor(%q) = %v, want %v", tt.store, got, tt.want)
		}
	}
}

func TestRuleFor(t *testing.T) {
	r := NewRegistry([]string{"target"})

	p := &restock.Product{
		StoreName:   "GameStop",
		Selector:    "span.availability",
		InStockText: "Available",
	}
	rule := r.RuleFor(p)
	if rule.Policy != PolicyGeneric {
		t.Errorf("RuleFor() policy = %v, want %v", rule.Policy, PolicyGeneric)
	}
	if rule.Selector != p.Selector || rule.InStockText != p.InStockText {
		t.Errorf("RuleFor() did not carry the product matching rule: %+v", rule)
	}

	p.StoreName = "Target"
	if rule := r.RuleFor(p); rule.Policy != PolicyScored {
		t.Errorf("RuleFor() policy = %v, want %v", rule.Policy, PolicyScored)
	}
}
