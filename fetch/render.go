package fetch

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// render loads a page in headless Chrome and returns the DOM after scripts
// have run. A fresh browser context per call keeps renderer crashes from
// poisoning later fetches; the monitor's pacing keeps the launch cost
// off the hot path.
func (c *Client) render(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, c.renderTimeout)
	defer cancelTimeout()

	c.logger.Debug("Rendering page in headless browser", "url", pageURL)

	var markup string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &markup),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	return markup, nil
}
