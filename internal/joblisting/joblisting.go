// Package joblisting downloads job listing pages and reduces them to visible text.
package joblisting

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/utils"
)

const (
	// DefaultUserAgent is sent instead of Go's default, which many job boards block.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	DefaultTimeout   = 10 * time.Second
	// DefaultBrowserMinText is the rune count below which the browser fallback kicks in.
	DefaultBrowserMinText = 500

	acceptEncoding = "gzip"
	accept         = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
	maxBodyBytes   = 8 << 20
)

// Listing is the visible text of a fetched job listing page.
type Listing struct {
	URL        string
	StatusCode int
	Text       string
	Rendered   bool
}

// Renderer loads a page in a real browser and returns the resulting HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Renderer is used when the plain HTTP text is shorter than BrowserMinText runes.
	Renderer       Renderer
	BrowserMinText int
}

type Client struct {
	logger         *zap.Logger
	HTTPClient     *http.Client
	UserAgent      string
	Renderer       Renderer
	BrowserMinText int
}

func New(logger *zap.Logger, opts Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	minText := opts.BrowserMinText
	if minText <= 0 {
		minText = DefaultBrowserMinText
	}

	return &Client{
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent:      userAgent,
		Renderer:       opts.Renderer,
		BrowserMinText: minText,
	}
}

// Fetch downloads the page at rawURL and returns its visible text. A non-2xx
// response is not an error: whatever text the page carries is returned.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Listing, error) {
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Cause: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Cause: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Cause: errors.New("missing host")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Cause: err}
	}

	req = c.setHeaders(req)

	c.logger.Debug("fetching job listing", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, classify(rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("job listing responded with non-success status",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
	}

	text, err := VisibleText(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Cause: err}
	}

	listing := &Listing{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Text:       text,
	}

	if c.shouldRender(listing) {
		c.render(ctx, listing)
	}

	c.logger.Debug("job listing fetched",
		zap.String("url", rawURL),
		zap.Int("status", listing.StatusCode),
		zap.Int("text_runes", utils.RuneLen(listing.Text)),
		zap.Bool("rendered", listing.Rendered),
	)

	return listing, nil
}

func (c *Client) shouldRender(listing *Listing) bool {
	if c.Renderer == nil {
		return false
	}
	if listing.StatusCode < 200 || listing.StatusCode > 299 {
		return false
	}

	return utils.RuneLen(listing.Text) < c.BrowserMinText
}

// render replaces the listing text with the browser-rendered one when it is
// longer. Renderer failures keep the HTTP text.
func (c *Client) render(ctx context.Context, listing *Listing) {
	c.logger.Info("job listing text is short, rendering in browser",
		zap.String("url", listing.URL),
		zap.Int("text_runes", utils.RuneLen(listing.Text)),
	)

	html, err := c.Renderer.Render(ctx, listing.URL)
	if err != nil {
		c.logger.Warn("browser rendering failed, keeping plain text", zap.String("url", listing.URL), zap.Error(err))
		return
	}

	text, err := VisibleText(strings.NewReader(html))
	if err != nil {
		c.logger.Warn("failed to read rendered page", zap.String("url", listing.URL), zap.Error(err))
		return
	}

	if utils.RuneLen(text) > utils.RuneLen(listing.Text) {
		listing.Text = text
		listing.Rendered = true
	}
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	return req
}

// readBody returns the (decompressed) response body, capped at maxBodyBytes.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return data, nil
}
