package scraper

import (
	"context"
	"net/url"
	"time"

	"github.com/yameens/trumpdump/internal/storage/models"
)

// TruthSocialFetcher scrapes the trumpstruth.org mirror. Posts there carry
// no titles; reposts are flagged by a reblog indicator preceding the status.
type TruthSocialFetcher struct {
	httpFetcher
	listingURL string
}

func NewTruthSocialFetcher(listingURL, userAgent string) *TruthSocialFetcher {
	return &TruthSocialFetcher{
		httpFetcher: newHTTPFetcher(userAgent, 20*time.Second),
		listingURL:  listingURL,
	}
}

func (f *TruthSocialFetcher) Source() models.Source {
	return models.SourceTruthSocial
}

func (f *TruthSocialFetcher) LatestItem(ctx context.Context) (*ListingItem, error) {
	doc, err := f.getDocument(ctx, f.listingURL)
	if err != nil {
		return nil, err
	}

	root := doc.Find("main")
	if root.Length() == 0 {
		root = doc.Selection
	}

	status := root.Find("div.status").First()
	if status.Length() == 0 {
		return nil, nil
	}

	rawURL, ok := status.Attr("data-status-url")
	if !ok || rawURL == "" {
		return nil, nil
	}

	fullURL, err := f.resolveURL(rawURL)
	if err != nil {
		return nil, err
	}

	isRepost := false
	prev := status.Prev()
	if prev.Length() > 0 {
		if prev.HasClass("status__reblog-indicator") ||
			prev.Find(".status__reblog-indicator").Length() > 0 {
			isRepost = true
		}
	}

	return &ListingItem{URL: fullURL, IsRepost: isRepost}, nil
}

func (f *TruthSocialFetcher) FetchContent(ctx context.Context, url string) (string, error) {
	doc, err := f.getDocument(ctx, url)
	if err != nil {
		return "", err
	}
	return extractParagraphs(doc), nil
}

func (f *TruthSocialFetcher) resolveURL(raw string) (string, error) {
	base, err := url.Parse(f.listingURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
