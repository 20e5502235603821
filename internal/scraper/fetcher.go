// Package scraper fetches the newest item from each monitored source. Each
// fetcher knows one listing page and how to pull full text for an item; the
// poller owns checkpoints, storage and everything downstream.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yameens/trumpdump/internal/storage/models"
)

// ListingItem is the newest entry on a source's listing page, before its
// full content has been fetched.
type ListingItem struct {
	URL      string
	Title    string
	IsRepost bool
}

// Fetcher is implemented per source.
type Fetcher interface {
	Source() models.Source
	// LatestItem returns the newest item on the listing page, or nil when
	// the page has no recognizable items.
	LatestItem(ctx context.Context) (*ListingItem, error)
	// FetchContent returns the full text for an item URL.
	FetchContent(ctx context.Context, url string) (string, error)
}

type httpFetcher struct {
	client    *http.Client
	userAgent string
}

func newHTTPFetcher(userAgent string, timeout time.Duration) httpFetcher {
	return httpFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (f httpFetcher) getDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	return doc, nil
}

// extractParagraphs joins the non-empty <p> text under <main>, falling back
// to the whole document when the page has no main element.
func extractParagraphs(doc *goquery.Document) string {
	root := doc.Find("main")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	root.Find("p").Each(func(_ int, s *goquery.Selection) {
		txt := strings.TrimSpace(s.Text())
		if txt != "" {
			parts = append(parts, txt)
		}
	})

	return strings.Join(parts, "\n\n")
}
