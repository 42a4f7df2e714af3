// Package scraper extracts a thumbnail image from an event's detail page.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	commonhttp "event-enricher/internal/common/http"
)

type Config struct {
	// Selector locates the image element (or a container holding one)
	Selector string
	// BaseURL resolves relative image sources; the page URL is used when empty
	BaseURL string
	// NotFoundURL is returned when the page has no usable image
	NotFoundURL string
}

type Client struct {
	fetcher *commonhttp.Fetcher
	config  Config
	base    *url.URL
}

func NewClient(fetcher *commonhttp.Fetcher, config Config) (*Client, error) {
	if strings.TrimSpace(config.Selector) == "" {
		return nil, fmt.Errorf("scraper selector is required")
	}
	c := &Client{fetcher: fetcher, config: config}
	if config.BaseURL != "" {
		base, err := url.Parse(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid scraper base URL: %w", err)
		}
		c.base = base
	}
	return c, nil
}

// FindImage fetches link and returns the absolute image URL, or the
// not-found sentinel when the page has none
func (c *Client) FindImage(ctx context.Context, link string) (string, error) {
	page, err := url.Parse(strings.TrimSpace(link))
	if err != nil || !page.IsAbs() {
		return c.config.NotFoundURL, nil
	}

	resp, err := c.fetcher.Get(ctx, page.String(), map[string]string{"Accept": "text/html"})
	if err != nil {
		return "", err
	}

	src, err := c.Extract(resp.Body)
	if err != nil {
		return "", err
	}
	if src == "" {
		return c.config.NotFoundURL, nil
	}

	base := c.base
	if base == nil {
		base = page
	}
	return resolve(base, src), nil
}

// Extract returns the raw image source matched by the selector
func (c *Client) Extract(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	sel := doc.Find(c.config.Selector).First()
	if sel.Length() == 0 {
		return "", nil
	}
	if !sel.Is("img") {
		sel = sel.Find("img").First()
	}

	for _, attr := range []string{"src", "data-src"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", nil
}

func resolve(base *url.URL, src string) string {
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
