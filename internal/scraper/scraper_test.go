package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/explainee/internal/retry"
)

const sampleArticle = `<!DOCTYPE html>
<html>
<head><title>  Storm hits coast  </title></head>
<body>
  <article>
    <p>  First paragraph of the story.  </p>
    <p>   </p>
    <p>Second <b>paragraph</b> with markup.</p>
  </article>
  <footer><p>Footer text</p></footer>
</body>
</html>`

func newTestFetcher(client *http.Client, attempts int) *HTMLFetcher {
	f := NewHTMLFetcher(10*time.Second, retry.RetryConfig{MaxAttempts: attempts, Delay: time.Millisecond})
	if client != nil {
		f.client = client
	}
	return f
}

func TestFetchExtractsTitleParagraphsAndSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(sampleArticle))
	}))
	defer ts.Close()

	page, err := newTestFetcher(ts.Client(), 1).Fetch(context.Background(), ts.URL+"/news/1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != "Storm hits coast" {
		t.Errorf("Title = %q", page.Title)
	}
	want := []string{"First paragraph of the story.", "Second paragraph with markup.", "Footer text"}
	if len(page.Paragraphs) != len(want) {
		t.Fatalf("Paragraphs = %q", page.Paragraphs)
	}
	for i := range want {
		if page.Paragraphs[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, page.Paragraphs[i], want[i])
		}
	}
	if page.Text() != strings.Join(want, "\n\n") {
		t.Errorf("Text = %q", page.Text())
	}
	if !strings.HasPrefix(page.Source, "127.0.0.1:") {
		t.Errorf("Source = %q", page.Source)
	}
}

func TestFetchMissingTitle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Only text.</p></body></html>`))
	}))
	defer ts.Close()

	page, err := newTestFetcher(ts.Client(), 1).Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != NoTitle {
		t.Errorf("Title = %q, want %q", page.Title, NoTitle)
	}
}

func TestFetchEmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Empty</title></head><body><div>no paragraphs</div><p> </p></body></html>`))
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts.Client(), 1).Fetch(context.Background(), ts.URL)
	var ece *EmptyContentError
	if !errors.As(err, &ece) {
		t.Fatalf("expected EmptyContentError, got %v", err)
	}
}

func TestFetchBadStatusIsFetchErrorWithoutRetry(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts.Client(), 3).Fetch(context.Background(), ts.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", fe.StatusCode)
	}
	if calls != 1 {
		t.Errorf("4xx should not be retried, calls = %d", calls)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(sampleArticle))
	}))
	defer ts.Close()

	page, err := newTestFetcher(ts.Client(), 2).Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 2 || page.Title != "Storm hits coast" {
		t.Errorf("calls = %d, title = %q", calls, page.Title)
	}
}

func TestFetchUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := ts.URL
	ts.Close()

	_, err := newTestFetcher(nil, 1).Fetch(context.Background(), addr)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Err == nil {
		t.Error("expected underlying transport error")
	}
}

func TestFetchRejectsRelativeURL(t *testing.T) {
	_, err := newTestFetcher(nil, 1).Fetch(context.Background(), "/relative/path")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}
