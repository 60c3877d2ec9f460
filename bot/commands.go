package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restock-notifier/pkg/restock"
)

// findProduct resolves a product reference: exact document ID first, then
// exact name.
func (b *Bot) findProduct(ctx context.Context, ref string) (*restock.Product, error) {
	p, err := b.store.Product(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, restock.ErrNotFound) {
		return nil, err
	}
	return b.store.ProductByName(ctx, ref)
}

func (b *Bot) handleSubscribe(ctx context.Context, subscriberID, args string) string {
	args = strings.TrimSpace(args)

	if args == "" {
		if err := b.store.SubscribeAll(ctx, subscriberID); err != nil {
			b.logger.Warn("Subscribe-all failed", "subscriber_id", subscriberID, "error", err)
			return "❌ Subscribe failed, please try again."
		}
		return "✅ Subscribed to restock alerts for *all* monitored products."
	}

	p, err := b.findProduct(ctx, args)
	if errors.Is(err, restock.ErrNotFound) {
		return fmt.Sprintf("❌ Product %q not found. Use /products to see what is monitored.", args)
	}
	if err != nil {
		b.logger.Warn("Product lookup failed", "ref", args, "error", err)
		return "❌ Subscribe failed, please try again."
	}

	if err := b.store.Subscribe(ctx, subscriberID, p.ID); err != nil {
		b.logger.Warn("Subscribe failed", "subscriber_id", subscriberID, "product_id", p.ID, "error", err)
		return "❌ Subscribe failed, please try again."
	}
	return fmt.Sprintf("✅ Subscribed to restock alerts for *%s*.", p.Name)
}

func (b *Bot) handleUnsubscribe(ctx context.Context, subscriberID, args string) string {
	args = strings.TrimSpace(args)

	if args == "" {
		err := b.store.UnsubscribeAll(ctx, subscriberID)
		if errors.Is(err, restock.ErrNotFound) {
			return "ℹ️ This chat has no subscriptions."
		}
		if err != nil {
			b.logger.Warn("Unsubscribe-all failed", "subscriber_id", subscriberID, "error", err)
			return "❌ Unsubscribe failed, please try again."
		}
		return "✅ Unsubscribed from *all* restock alerts."
	}

	p, err := b.findProduct(ctx, args)
	if errors.Is(err, restock.ErrNotFound) {
		return fmt.Sprintf("❌ Product %q not found.", args)
	}
	if err != nil {
		b.logger.Warn("Product lookup failed", "ref", args, "error", err)
		return "❌ Unsubscribe failed, please try again."
	}

	err = b.store.Unsubscribe(ctx, subscriberID, p.ID)
	if errors.Is(err, restock.ErrNotFound) {
		return "ℹ️ This chat has no subscriptions."
	}
	if err != nil {
		b.logger.Warn("Unsubscribe failed", "subscriber_id", subscriberID, "product_id", p.ID, "error", err)
		return "❌ Unsubscribe failed, please try again."
	}
	return fmt.Sprintf("✅ Unsubscribed from alerts for *%s*.", p.Name)
}

func (b *Bot) handleSubscriptions(ctx context.Context, subscriberID string) string {
	sub, err := b.store.Subscription(ctx, subscriberID)
	if errors.Is(err, restock.ErrNotFound) {
		return "ℹ️ This chat has no subscriptions. Use /subscribe to add some."
	}
	if err != nil {
		b.logger.Warn("Subscription lookup failed", "subscriber_id", subscriberID, "error", err)
		return "❌ Could not load subscriptions, please try again."
	}

	if sub.Preference == restock.PreferenceAll {
		return "This chat is subscribed to alerts for *all* monitored products. ✨"
	}
	if len(sub.ProductIDs) == 0 {
		return "ℹ️ This chat has no product subscriptions. Use /subscribe to add some."
	}

	var lines []string
	for _, id := range sub.ProductIDs {
		p, err := b.store.Product(ctx, id)
		if errors.Is(err, restock.ErrNotFound) {
			lines = append(lines, fmt.Sprintf("• unknown product (`%s`, may have been removed)", id))
			continue
		}
		if err != nil {
			b.logger.Warn("Product lookup failed", "product_id", id, "error", err)
			continue
		}
		lines = append(lines, fmt.Sprintf("• *%s* (`%s`)", p.Name, p.ID))
	}
	return "Subscriptions for this chat:\n" + strings.Join(lines, "\n")
}

func (b *Bot) handleProducts(ctx context.Context) string {
	products, err := b.store.AllProducts(ctx)
	if err != nil {
		b.logger.Warn("Product list failed", "error", err)
		return "❌ Could not load products, please try again."
	}
	if len(products) == 0 {
		return "ℹ️ No products are being monitored yet."
	}

	var lines []string
	for _, p := range products {
		state := "active"
		if !p.Active {
			state = "inactive"
		}
		checked := "never"
		if !p.LastChecked.IsZero() {
			checked = p.LastChecked.UTC().Format(time.RFC3339)
		}
		lines = append(lines, fmt.Sprintf("• *%s* (`%s`)\n  %s | %s | status: `%s` | checked: %s",
			p.Name, p.ID, p.StoreName, state, p.LastStatus, checked))
	}
	return "Monitored products:\n" + strings.Join(lines, "\n")
}

// handleAddProduct expects pipe-separated fields:
// name | store | url | checkout url | selector | in-stock text | requires_js
func (b *Bot) handleAddProduct(ctx context.Context, args string) string {
	parts := strings.Split(args, "|")
	if len(parts) != 7 {
		return "Usage: /addproduct name | store | url | checkout url | css selector | in-stock text | requires\\_js (true/false)"
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	p := &restock.Product{
		Name:        parts[0],
		StoreName:   parts[1],
		URL:         parts[2],
		CheckoutURL: parts[3],
		Selector:    parts[4],
		InStockText: parts[5],
		RequiresJS:  strings.EqualFold(parts[6], "true"),
		Active:      true,
		LastStatus:  restock.StatusUnknown,
	}
	if p.Name == "" || p.StoreName == "" || p.URL == "" {
		return "❌ name, store, and url are required."
	}

	id, err := b.store.CreateProduct(ctx, p)
	if err != nil {
		b.logger.Warn("Add product failed", "name", p.Name, "error", err)
		return "❌ Could not add the product, please try again."
	}
	return fmt.Sprintf("✅ Monitoring *%s* from %s (id: `%s`).", p.Name, p.StoreName, id)
}

func (b *Bot) handleRemoveProduct(ctx context.Context, args string) string {
	id := strings.TrimSpace(args)
	if id == "" {
		return "Usage: /removeproduct product\\_id"
	}

	err := b.store.DeleteProduct(ctx, id)
	if errors.Is(err, restock.ErrNotFound) {
		return fmt.Sprintf("❌ Product `%s` not found.", id)
	}
	if err != nil {
		b.logger.Warn("Remove product failed", "product_id", id, "error", err)
		return "❌ Could not remove the product, please try again."
	}
	return fmt.Sprintf("✅ Product `%s` removed; all subscriptions updated.", id)
}

func (b *Bot) handleToggle(ctx context.Context, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "Usage: /toggle product\\_id true|false"
	}
	id := fields[0]
	enable := strings.EqualFold(fields[1], "true")

	err := b.store.SetProductActive(ctx, id, enable)
	if errors.Is(err, restock.ErrNotFound) {
		return fmt.Sprintf("❌ Product `%s` not found.", id)
	}
	if err != nil {
		b.logger.Warn("Toggle failed", "product_id", id, "error", err)
		return "❌ Could not update the product, please try again."
	}

	if enable {
		return fmt.Sprintf("✅ Monitoring enabled for `%s`.", id)
	}
	return fmt.Sprintf("✅ Monitoring disabled for `%s`.", id)
}

func (b *Bot) handleSetStatus(ctx context.Context, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "Usage: /setstatus product\\_id in\\_stock|out\\_of\\_stock|unknown"
	}
	id := fields[0]
	st := restock.Status(fields[1])
	if !st.Valid() {
		return "❌ Status must be one of: in\\_stock, out\\_of\\_stock, unknown."
	}

	err := b.store.SetProductStatus(ctx, id, st)
	if errors.Is(err, restock.ErrNotFound) {
		return fmt.Sprintf("❌ Product `%s` not found.", id)
	}
	if err != nil {
		b.logger.Warn("Set status failed", "product_id", id, "error", err)
		return "❌ Could not update the product, please try again."
	}
	return fmt.Sprintf("✅ Status for `%s` set to `%s`.", id, st)
}

// handleCheck classifies one product on demand and persists the result. No
// notifications: a manual check never fires the restock path.
func (b *Bot) handleCheck(ctx context.Context, args string) string {
	ref := strings.TrimSpace(args)
	if ref == "" {
		return "Usage: /check product\\_id"
	}

	p, err := b.findProduct(ctx, ref)
	if errors.Is(err, restock.ErrNotFound) {
		return fmt.Sprintf("❌ Product %q not found.", ref)
	}
	if err != nil {
		b.logger.Warn("Product lookup failed", "ref", ref, "error", err)
		return "❌ Check failed, please try again."
	}

	cur := b.checker.Classify(ctx, p)
	upd := restock.CheckUpdate{
		Status:         cur,
		ConsecutiveOOS: p.ConsecutiveOOS,
		CheckedAt:      b.now(),
	}
	if err := b.store.UpdateProductCheck(ctx, p.ID, upd); err != nil {
		b.logger.Warn("Persist manual check failed", "product_id", p.ID, "error", err)
	}

	return fmt.Sprintf("🔍 *%s*\nCurrent: `%s`\nPrevious: `%s`", p.Name, cur, p.LastStatus)
}

func (b *Bot) handleCheckAll(ctx context.Context) string {
	products, err := b.store.AllProducts(ctx)
	if err != nil {
		b.logger.Warn("Product list failed", "error", err)
		return "❌ Check failed, please try again."
	}
	if len(products) == 0 {
		return "ℹ️ No products to check."
	}

	byStatus := map[restock.Status][]string{}
	for _, p := range products {
		cur := b.checker.Classify(ctx, p)
		upd := restock.CheckUpdate{
			Status:         cur,
			ConsecutiveOOS: p.ConsecutiveOOS,
			CheckedAt:      b.now(),
		}
		if err := b.store.UpdateProductCheck(ctx, p.ID, upd); err != nil {
			b.logger.Warn("Persist manual check failed", "product_id", p.ID, "error", err)
		}
		byStatus[cur] = append(byStatus[cur], fmt.Sprintf("*%s* (`%s`)", p.Name, p.ID))
	}

	var b2 strings.Builder
	b2.WriteString("Stock check results:\n")
	if v := byStatus[restock.StatusInStock]; len(v) > 0 {
		fmt.Fprintf(&b2, "\n🟢 IN STOCK\n%s\n", strings.Join(v, "\n"))
	}
	if v := byStatus[restock.StatusOutOfStock]; len(v) > 0 {
		fmt.Fprintf(&b2, "\n🔴 OUT OF STOCK\n%s\n", strings.Join(v, "\n"))
	}
	if v := byStatus[restock.StatusUnknown]; len(v) > 0 {
		fmt.Fprintf(&b2, "\n⚪ UNKNOWN\n%s\n", strings.Join(v, "\n"))
	}
	return b2.String()
}

func (b *Bot) handleReset(ctx context.Context) string {
	count, err := b.store.ResetAllStatuses(ctx)
	if err != nil {
		b.logger.Warn("Reset failed", "error", err)
		return "❌ Reset failed, please try again."
	}
	return fmt.Sprintf("✅ Reset %d products to `out_of_stock`.", count)
}

func (b *Bot) handleHelp(chatID int64) string {
	var sb strings.Builder
	sb.WriteString(`*Restock alerts*
/subscribe — alerts for all products
/subscribe product — alerts for one product (id or exact name)
/unsubscribe — drop all alerts
/unsubscribe product — drop one product
/subscriptions — list this chat's subscriptions
/products — list monitored products
`)
	if b.isAdmin(chatID) {
		sb.WriteString(`
*Admin*
/addproduct name | store | url | checkout | selector | in-stock text | requires\_js
/removeproduct id
/toggle id true|false
/setstatus id status
/check id — classify once, no notifications
/checkall — classify everything, no notifications
/reset — set every product to out\_of\_stock
`)
	}
	return sb.String()
}
