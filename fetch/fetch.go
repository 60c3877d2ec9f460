// Package fetch retrieves product page markup, either with a plain HTTP GET
// or through a headless browser for JavaScript-rendered storefronts.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Client fetches page markup.
type Client struct {
	httpClient    *http.Client
	logger        *slog.Logger
	fetchTimeout  time.Duration
	renderTimeout time.Duration
}

// New creates a fetch client. httpClient should carry its own transport-level
// timeout; fetchTimeout and renderTimeout bound a whole attempt.
func New(httpClient *http.Client, fetchTimeout, renderTimeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient:    httpClient,
		logger:        logger,
		fetchTimeout:  fetchTimeout,
		renderTimeout: renderTimeout,
	}
}

// Fetch returns the markup for url. When requiresJS is set the page is loaded
// in a headless browser first; if the renderer fails for any reason the static
// path is tried before giving up. Any failure means "no content" to callers.
func (c *Client) Fetch(ctx context.Context, url string, requiresJS bool) (string, error) {
	if requiresJS {
		markup, err := c.render(ctx, url)
		if err == nil {
			return markup, nil
		}
		c.logger.Warn("Headless render failed, falling back to static fetch", "url", url, "error", err)
	}
	return c.fetchStatic(ctx, url)
}

func (c *Client) fetchStatic(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	var markup string

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}

			// Browser-like headers; retail sites refuse obvious bots.
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")

			start := time.Now()
			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Warn("HTTP request failed, will retry",
					"url", pageURL,
					"duration_ms", time.Since(start).Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
				// Retrying won't change an access or existence answer.
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			c.logger.Debug("Page fetched",
				"url", pageURL,
				"status_code", resp.StatusCode,
				"bytes", len(body),
				"duration_ms", time.Since(start).Milliseconds())

			markup = string(body)
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying fetch", "url", pageURL, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	return markup, nil
}
