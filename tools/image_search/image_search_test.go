package image_search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/picbot/tools/image_search/models"
)

func newSearcher(t *testing.T, provider Provider, srv *httptest.Server) ImageSearcher {
	t.Helper()
	s, err := NewImageSearcher(provider, "test-key", srv.URL, NewHTTPClient(2*time.Second))
	if err != nil {
		t.Fatalf("NewImageSearcher: %v", err)
	}
	return s
}

func TestSerpApiImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("engine") != "google_images" || q.Get("q") != "cats" || q.Get("num") != "10" || q.Get("api_key") != "test-key" {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"images_results":[
			{"original":"https://a.example/a.jpg","thumbnail":"https://t.example/a.jpg"},
			{"thumbnail":"https://t.example/b.jpg"},
			{"title":"no url"},
			{"original":"data:image/png;base64,AAAA"}
		]}`)
	}))
	defer srv.Close()

	images, err := newSearcher(t, SerpApiProvider, srv).Images(context.Background(), "cats", 10)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	got := Normalize(images, 10)
	want := []string{"https://a.example/a.jpg", "https://t.example/b.jpg"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSerpApiErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		wantCount int
	}{
		{"invalid key", http.StatusUnauthorized, `{"error":"Invalid API key."}`, true, 0},
		{"no results", http.StatusOK, `{"error":"Google hasn't returned any results for this query."}`, false, 0},
		{"malformed", http.StatusOK, `{"images_results":[`, true, 0},
		{"server error", http.StatusBadGateway, `{}`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			images, err := newSearcher(t, SerpApiProvider, srv).Images(context.Background(), "rare-thing", 10)
			if tt.wantErr {
				var perr *models.ProviderError
				if !errors.As(err, &perr) {
					t.Fatalf("expected ProviderError, got %v", err)
				}
				return
			}
			if err != nil || len(images) != tt.wantCount {
				t.Fatalf("got %v, %v", images, err)
			}
		})
	}
}

func TestSerperImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/images" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "test-key" {
			t.Errorf("missing api key header")
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["q"] != "cats" || payload["num"] != float64(3) {
			t.Errorf("unexpected payload %v", payload)
		}
		_, _ = io.WriteString(w, `{"images":[
			{"title":"a","imageUrl":"https://a.example/a.jpg","thumbnailUrl":"https://t.example/a.jpg"},
			{"title":"b","thumbnailUrl":"https://t.example/b.jpg"}
		]}`)
	}))
	defer srv.Close()

	images, err := newSearcher(t, SerperProvider, srv).Images(context.Background(), "cats", 3)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	got := Normalize(images, 3)
	if len(got) != 2 || got[0] != "https://a.example/a.jpg" || got[1] != "https://t.example/b.jpg" {
		t.Fatalf("unexpected urls %v", got)
	}
}

func TestBraveImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/res/v1/images/search" || r.Header.Get("X-Subscription-Token") != "test-key" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.URL.Query().Get("count") != "5" {
			t.Errorf("unexpected count %s", r.URL.Query().Get("count"))
		}
		_, _ = io.WriteString(w, `{"type":"images","results":[
			{"title":"a","url":"https://page.example/a","properties":{"url":"https://a.example/a.jpg"},"thumbnail":{"src":"https://t.example/a.jpg"}},
			{"title":"b","thumbnail":{"src":"https://t.example/b.jpg"}}
		]}`)
	}))
	defer srv.Close()

	images, err := newSearcher(t, BraveProvider, srv).Images(context.Background(), "cats", 5)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	got := Normalize(images, 5)
	if len(got) != 2 || got[0] != "https://a.example/a.jpg" || got[1] != "https://t.example/b.jpg" {
		t.Fatalf("unexpected urls %v", got)
	}
}

func TestBraveRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"ErrorResponse","error":{"code":"SUBSCRIPTION_TOKEN_INVALID","detail":"The provided subscription token is invalid."}}`)
	}))
	defer srv.Close()

	_, err := newSearcher(t, BraveProvider, srv).Images(context.Background(), "cats", 5)
	var perr *models.ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 ProviderError, got %v", err)
	}
}

func TestUnsupportedProvider(t *testing.T) {
	if _, err := NewImageSearcher("bing", "k", "", NewHTTPClient(time.Second)); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	images := []models.Image{
		{URL: "https://a.example/1.jpg"},
		{URL: "  ", ThumbnailURL: "https://t.example/2.jpg"},
		{URL: "ftp://a.example/3.jpg"},
		{URL: "/relative.jpg"},
		{URL: "https://a.example/1.jpg"},
		{URL: "http://a.example/4.jpg"},
		{URL: "https://a.example/5.jpg"},
	}
	got := Normalize(images, 3)
	want := []string{"https://a.example/1.jpg", "https://t.example/2.jpg", "http://a.example/4.jpg"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if n := len(Normalize(images, 0)); n != 4 {
		t.Fatalf("limit 0 should keep all usable urls, got %d", n)
	}
	if got := Normalize(nil, 10); len(got) != 0 {
		t.Fatalf("expected no urls, got %v", got)
	}
}

type stubSearcher struct {
	images []models.Image
	err    error
	delay  time.Duration
}

func (s stubSearcher) Images(ctx context.Context, q string, k int) ([]models.Image, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.images, s.err
}

func TestFetcherWrapsFailures(t *testing.T) {
	f := NewFetcher(stubSearcher{err: &models.ProviderError{Provider: "serpapi", Status: 401, Message: "bad key"}}, 10, time.Second, nil)
	_, err := f.Fetch(context.Background(), "cats")
	if !errors.Is(err, ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure, got %v", err)
	}
	var perr *models.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("provider error should stay inspectable, got %v", err)
	}
}

func TestFetcherTimeoutIsFailure(t *testing.T) {
	f := NewFetcher(stubSearcher{delay: time.Second}, 10, 20*time.Millisecond, nil)
	_, err := f.Fetch(context.Background(), "cats")
	if !errors.Is(err, ErrFetchFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout fetch failure, got %v", err)
	}
}

func TestFetcherEmpty(t *testing.T) {
	f := NewFetcher(stubSearcher{images: []models.Image{{Title: "no url"}}}, 10, time.Second, nil)
	urls, err := f.Fetch(context.Background(), "rare-thing")
	if err != nil || len(urls) != 0 {
		t.Fatalf("expected empty result without error, got %v %v", urls, err)
	}
}
