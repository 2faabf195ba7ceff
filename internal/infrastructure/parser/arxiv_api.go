package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/scanner"
)

const (
	// APIScannerName identifies the arXiv export API strategy.
	APIScannerName = "arxiv-api"

	submittedLayout = "200601021504"
	userAgent       = "PaperNotifier/1.0"
)

// ArxivAPIScanner pages through the arXiv export API (Atom) for one category
// and keeps the entries submitted inside the requested window.
type ArxivAPIScanner struct {
	client     *http.Client
	baseURL    string
	pageSize   int
	maxResults int
}

// NewArxivAPIScanner wires an HTTP client; pageSize defaults to 200 and
// maxResults to 1000 per category and window.
func NewArxivAPIScanner(client *http.Client, baseURL string, pageSize, maxResults int) *ArxivAPIScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	if maxResults <= 0 {
		maxResults = 1000
	}
	return &ArxivAPIScanner{client: client, baseURL: baseURL, pageSize: pageSize, maxResults: maxResults}
}

// Name identifies the strategy inside the registry.
func (a *ArxivAPIScanner) Name() string {
	return APIScannerName
}

// Scan fetches every page of the category query until a short page or the result cap.
func (a *ArxivAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Entry, error) {
	if req.Category == "" {
		return nil, fmt.Errorf("category is required")
	}

	var results []domain.Entry
	for start := 0; start < a.maxResults; start += a.pageSize {
		pageURL, err := buildQueryURL(a.baseURL, req.Category, req.Window, start, a.pageSize)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", req.Category, err)
		}

		doc, err := fetchDocument(ctx, a.client, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", req.Category, err)
		}

		page := parseFeed(doc, req.Category)
		for _, entry := range page {
			if req.Window.Contains(entry.PublishedAt) {
				results = append(results, entry)
			}
		}
		if len(page) < a.pageSize {
			break
		}
	}

	return results, nil
}

func buildQueryURL(base, category string, w domain.Window, start, size int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid api url %s: %w", base, err)
	}

	// arXiv ranges are inclusive to the minute; the half-open cut happens in Scan.
	search := fmt.Sprintf("cat:%s AND submittedDate:[%s TO %s]",
		category,
		w.Start.UTC().Format(submittedLayout),
		w.End.UTC().Format(submittedLayout),
	)

	query := parsed.Query()
	query.Set("search_query", search)
	query.Set("start", strconv.Itoa(start))
	query.Set("max_results", strconv.Itoa(size))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "ascending")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// parseFeed reads Atom entries. goquery parses the feed leniently as HTML, so
// selectors are descendant-based rather than strict child paths.
func parseFeed(doc *goquery.Document, category string) []domain.Entry {
	var entries []domain.Entry
	doc.Find("entry").Each(func(_ int, s *goquery.Selection) {
		entry := domain.Entry{
			ID:       strings.TrimSpace(s.Find("id").First().Text()),
			Title:    strings.TrimSpace(s.Find("title").First().Text()),
			Summary:  strings.TrimSpace(s.Find("summary").First().Text()),
			Category: category,
		}
		if entry.ID == "" {
			return
		}

		s.Find("author name").Each(func(_ int, n *goquery.Selection) {
			if name := strings.TrimSpace(n.Text()); name != "" {
				entry.Authors = append(entry.Authors, name)
			}
		})

		if published, err := time.Parse(time.RFC3339, strings.TrimSpace(s.Find("published").First().Text())); err == nil {
			entry.PublishedAt = published.UTC()
		}

		entry.Link = entry.ID
		if href, ok := s.Find(`link[rel="alternate"]`).First().Attr("href"); ok && href != "" {
			entry.Link = href
		}

		entries = append(entries, entry)
	})
	return entries
}

func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}
