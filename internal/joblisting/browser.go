package joblisting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	DefaultBrowserTimeout = 30 * time.Second
	settleDelay           = 2 * time.Second
)

// BrowserRenderer renders pages in headless Chrome. It requires a Chrome or
// Chromium binary on the host.
type BrowserRenderer struct {
	Timeout   time.Duration
	UserAgent string
	logger    *zap.Logger
}

func NewBrowserRenderer(logger *zap.Logger, timeout time.Duration, userAgent string) *BrowserRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}

	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &BrowserRenderer{Timeout: timeout, UserAgent: userAgent, logger: logger}
}

func (b *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(b.UserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.Timeout)
	defer cancel()

	b.logger.Debug("starting headless browser", zap.String("url", url), zap.Duration("timeout", b.Timeout))

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}

	b.logger.Debug("page rendered", zap.String("url", url), zap.Int("html_bytes", len(html)))

	return html, nil
}
