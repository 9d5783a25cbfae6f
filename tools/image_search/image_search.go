package image_search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mohammad-safakhou/picbot/tools/image_search/brave"
	"github.com/mohammad-safakhou/picbot/tools/image_search/models"
	"github.com/mohammad-safakhou/picbot/tools/image_search/serpapi"
	"github.com/mohammad-safakhou/picbot/tools/image_search/serper"
	"go.uber.org/zap"
)

// ImageSearcher is one hosted image search API.
type ImageSearcher interface {
	Images(ctx context.Context, q string, k int) ([]models.Image, error)
}

type Provider string

const (
	SerpApiProvider Provider = "serpapi"
	SerperProvider  Provider = "serper"
	BraveProvider   Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported image search provider")
	// ErrFetchFailure covers unreachable providers, rejected credentials,
	// timeouts and malformed responses.
	ErrFetchFailure = errors.New("image search failed")
)

// NewHTTPClient builds the resty client shared by providers. Calls are not
// retried; a failed search is reported to the user instead.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "picbot/1.0")
}

func NewImageSearcher(provider Provider, apiKey, baseURL string, client *resty.Client) (ImageSearcher, error) {
	switch provider {
	case SerpApiProvider:
		return serpapi.Search{ApiKey: apiKey, BaseURL: baseURL, Client: client}, nil
	case SerperProvider:
		return serper.Search{ApiKey: apiKey, BaseURL: baseURL, Client: client}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey, BaseURL: baseURL, Client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

// Fetcher turns a query into an ordered list of usable image URLs.
type Fetcher struct {
	searcher ImageSearcher
	count    int
	timeout  time.Duration
	logger   *zap.Logger
}

func NewFetcher(searcher ImageSearcher, count int, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{searcher: searcher, count: count, timeout: timeout, logger: logger.With(zap.String("component", "fetcher"))}
}

// Fetch returns at most count URLs. An empty slice with a nil error means the
// provider answered but had nothing usable.
func (f *Fetcher) Fetch(ctx context.Context, query string) ([]string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	start := time.Now()
	images, err := f.searcher.Images(ctx, query, f.count)
	if err != nil {
		f.logger.Warn("search failed", zap.String("query", query), zap.Duration("took", time.Since(start)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}
	urls := Normalize(images, f.count)
	f.logger.Debug("search done",
		zap.String("query", query),
		zap.Int("raw", len(images)),
		zap.Int("usable", len(urls)),
		zap.Duration("took", time.Since(start)),
	)
	return urls, nil
}

// Normalize keeps provider order, drops entries without an absolute http(s)
// URL and repeated URLs, and truncates to limit (limit <= 0 keeps all).
func Normalize(images []models.Image, limit int) []string {
	out := make([]string, 0, len(images))
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		u := usableURL(img.URL)
		if u == "" {
			u = usableURL(img.ThumbnailURL)
		}
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func usableURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return raw
}
