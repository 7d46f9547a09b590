package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/retry"
)

// NoTitle is used when the page has no usable <title>.
const NoTitle = "No title found"

// Page is the parsed form of a fetched article.
type Page struct {
	URL        string
	Title      string
	Source     string
	Paragraphs []string
}

// Text joins the paragraphs with a blank line between them.
func (p *Page) Text() string {
	return strings.Join(p.Paragraphs, "\n\n")
}

// FetchError reports a network or HTTP status failure.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP error: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// EmptyContentError reports a page without any paragraph text.
type EmptyContentError struct {
	URL string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf("no paragraph text found at %s", e.URL)
}

// Fetcher retrieves and parses articles.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// HTMLFetcher fetches pages over HTTP and extracts <p> text with goquery.
type HTMLFetcher struct {
	client    *http.Client
	retry     retry.RetryConfig
	userAgent string
}

// NewHTMLFetcher makes a fetcher whose requests time out after timeout.
func NewHTMLFetcher(timeout time.Duration, rc retry.RetryConfig) *HTMLFetcher {
	return &HTMLFetcher{
		client:    &http.Client{Timeout: timeout},
		retry:     rc,
		userAgent: "Mozilla/5.0 (compatible; explainee/1.0)",
	}
}

// Fetch gets the article at rawURL. Failures are *FetchError or
// *EmptyContentError.
func (f *HTMLFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = errors.New("URL must be absolute")
		}
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	var doc *goquery.Document
	err = retry.WithRetry(ctx, f.retry, func() error {
		d, err := f.get(ctx, rawURL)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	page := &Page{
		URL:        rawURL,
		Title:      extractTitle(doc),
		Source:     u.Host,
		Paragraphs: extractParagraphs(doc),
	}
	if len(page.Paragraphs) == 0 {
		return nil, &EmptyContentError{URL: rawURL}
	}

	logger.Debug("Fetched article", "url", rawURL, "paragraphs", len(page.Paragraphs), "title", page.Title)
	return page, nil
}

func (f *HTMLFetcher) get(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Permanent(&FetchError{URL: rawURL, Err: err})
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("error loading page: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fe
		}
		return nil, retry.Permanent(fe)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, retry.Permanent(&FetchError{URL: rawURL, Err: fmt.Errorf("error parsing HTML: %w", err)})
	}
	return doc, nil
}

// extractTitle returns the document <title>, or NoTitle.
func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return NoTitle
	}
	return title
}

// extractParagraphs collects the trimmed text of every non-empty <p>.
func extractParagraphs(doc *goquery.Document) []string {
	var paragraphs []string
	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return paragraphs
}
