// Package imagesearch scrapes an image search results page for picture links.
package imagesearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultBaseURL = "http://images.google.com/images"
	MaxResults     = 5

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var ErrNoResults = errors.New("no images found")

// ListCache is an optional result cache.
type ListCache interface {
	GetList(ctx context.Context, key string) ([]string, bool)
	SetList(ctx context.Context, key string, values []string) error
}

type Service struct {
	httpClient *http.Client
	baseURL    string
	cache      ListCache
	logger     *slog.Logger
}

func New(baseURL string, cache ListCache, logger *slog.Logger) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		cache:      cache,
		logger:     logger.With(slog.String("component", "imagesearch")),
	}
}

// Search returns up to n image links for query.
func (s *Service) Search(ctx context.Context, query string, n int) ([]string, error) {
	n = clamp(n)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty search query")
	}

	cacheKey := fmt.Sprintf("images:%s:%d", strings.ToLower(query), n)
	if s.cache != nil {
		if cached, ok := s.cache.GetList(ctx, cacheKey); ok {
			s.logger.Debug("Image search cache hit", slog.String("query", query))
			return cached, nil
		}
	}

	links, err := s.fetch(ctx, query, n)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetList(ctx, cacheKey, links); err != nil {
			s.logger.Warn("Failed to cache image search", slog.Any("error", err))
		}
	}
	return links, nil
}

func (s *Service) fetch(ctx context.Context, query string, n int) ([]string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image search url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	links := make([]string, 0, n)
	doc.Find("img[src*='http']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if src, ok := sel.Attr("src"); ok && src != "" {
			links = append(links, src)
		}
		return len(links) < n
	})

	if len(links) == 0 {
		return nil, ErrNoResults
	}
	s.logger.Info("Image search completed", slog.String("query", query), slog.Int("results", len(links)))
	return links, nil
}

// ParseArgs splits "/search [n] words..." arguments. A leading number sets how many
// images to return, clamped to 1..MaxResults.
func ParseArgs(args []string) (query string, n int) {
	n = 1
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = clamp(v)
			args = args[1:]
		}
	}
	return strings.Join(args, " "), n
}

func clamp(n int) int {
	return min(max(n, 1), MaxResults)
}
