package scraper

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yameens/trumpdump/internal/storage/models"
)

const whiteHouseBase = "https://www.whitehouse.gov"

// articleURLRe matches briefing/statement article paths like
// /briefings-statements/2026/01/some-slug/.
var articleURLRe = regexp.MustCompile(`^/briefings-statements/\d{4}/\d{2}/[^"'\s]+/?$`)

// WhiteHouseFetcher scrapes the briefings & statements listing page.
type WhiteHouseFetcher struct {
	httpFetcher
	listingURL string
}

func NewWhiteHouseFetcher(listingURL, userAgent string) *WhiteHouseFetcher {
	return &WhiteHouseFetcher{
		httpFetcher: newHTTPFetcher(userAgent, 20*time.Second),
		listingURL:  listingURL,
	}
}

func (f *WhiteHouseFetcher) Source() models.Source {
	return models.SourceWhiteHouse
}

func (f *WhiteHouseFetcher) LatestItem(ctx context.Context) (*ListingItem, error) {
	doc, err := f.getDocument(ctx, f.listingURL)
	if err != nil {
		return nil, err
	}

	root := doc.Find("main")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var item *ListingItem
	root.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))

		var path, fullURL string
		switch {
		case strings.HasPrefix(href, whiteHouseBase):
			path = strings.TrimPrefix(href, whiteHouseBase)
			fullURL = href
		case strings.HasPrefix(href, "/"):
			path = href
			fullURL = whiteHouseBase + href
		default:
			return true
		}

		if !articleURLRe.MatchString(path) {
			return true
		}

		title := strings.TrimSpace(s.Text())
		if title == "" {
			return true
		}

		item = &ListingItem{URL: fullURL, Title: title}
		return false
	})

	return item, nil
}

func (f *WhiteHouseFetcher) FetchContent(ctx context.Context, url string) (string, error) {
	doc, err := f.getDocument(ctx, url)
	if err != nil {
		return "", err
	}
	return extractParagraphs(doc), nil
}
