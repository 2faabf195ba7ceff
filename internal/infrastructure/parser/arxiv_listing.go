package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/scanner"
)

const (
	// ListingScannerName identifies the listing-page strategy.
	ListingScannerName = "arxiv-listing"

	arxivBaseURL = "https://arxiv.org"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivListingScanner walks the "pastweek" listing pages of a category. Listing
// pages only carry a day, so an entry is kept when its day overlaps the window.
type ArxivListingScanner struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

// NewArxivListingScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivListingScanner(client *http.Client, baseURL string, pageSize int) *ArxivListingScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &ArxivListingScanner{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), pageSize: pageSize}
}

// Name identifies the strategy inside the registry.
func (a *ArxivListingScanner) Name() string {
	return ListingScannerName
}

// Scan pages through the listing until entries fall before the window.
func (a *ArxivListingScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Entry, error) {
	if req.Category == "" {
		return nil, fmt.Errorf("category is required")
	}

	firstDay := req.Window.Start.UTC().Truncate(24 * time.Hour)
	categoryURL := fmt.Sprintf("%s/%s/pastweek", a.baseURL, req.Category)

	var results []domain.Entry
	for skip := 0; ; skip += a.pageSize {
		pageURL, err := buildPageURL(categoryURL, skip, a.pageSize)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", req.Category, err)
		}

		doc, err := fetchDocument(ctx, a.client, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", req.Category, err)
		}

		page, more := a.extractEntries(doc, firstDay, req.Window.End, req.Category)
		results = append(results, page...)
		if !more {
			break
		}
	}

	return results, nil
}

func (a *ArxivListingScanner) extractEntries(doc *goquery.Document, firstDay, end time.Time, category string) ([]domain.Entry, bool) {
	var (
		collected    []domain.Entry
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		processed++

		entry, ok := parseListingEntry(dt, dt.Next(), category)
		if !ok {
			return true
		}
		if entry.PublishedAt.Before(firstDay) {
			continueScan = false
			return false
		}
		if entry.PublishedAt.Before(end) {
			collected = append(collected, entry)
		}
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}
	return collected, continueScan
}

func parseListingEntry(dt, dd *goquery.Selection, category string) (domain.Entry, bool) {
	link := dt.Find(`a[href*="/abs/"]`).First()
	href, exists := link.Attr("href")
	if !exists || href == "" {
		return domain.Entry{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = arxivBaseURL + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	summary := strings.TrimSpace(dd.Find("p.mathjax").First().Text())
	summary = strings.TrimSpace(strings.TrimPrefix(summary, "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(_ int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	match := dateExpr.FindString(dateText)
	if match == "" {
		return domain.Entry{}, false
	}
	published, err := time.ParseInLocation("2 Jan 2006", match, time.UTC)
	if err != nil {
		return domain.Entry{}, false
	}

	return domain.Entry{
		ID:          href,
		Title:       title,
		Authors:     authors,
		Summary:     summary,
		PublishedAt: published,
		Link:        href,
		Category:    category,
	}, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
