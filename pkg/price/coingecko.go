package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"arb-buy/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	BaseDemo = "https://api.coingecko.com/api/v3"
	BasePro  = "https://pro-api.coingecko.com/api/v3"

	DefaultFreshFor = 5 * time.Minute
)

// ErrInvalidPrice is returned when the response has no usable USD price
var ErrInvalidPrice = errors.New("invalid price")

// HTTPError is a non-200 response from CoinGecko
type HTTPError struct {
	Status      int
	URL         string
	Body        string
	RateLimited bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("coingecko http %d %s: %s", e.Status, e.URL, e.Body)
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	msg := strings.TrimSpace(string(body))
	return &HTTPError{
		Status:      resp.StatusCode,
		URL:         resp.Request.URL.String(),
		Body:        msg,
		RateLimited: resp.StatusCode == http.StatusTooManyRequests || strings.Contains(strings.ToLower(msg), "throttled"),
	}
}

// Config configures the price source
type Config struct {
	BaseURL  string
	APIKey   string
	Pro      bool
	FreshFor time.Duration
	Timeout  time.Duration
}

type entry struct {
	usd       float64
	fetchedAt time.Time
}

// Source looks up USD reference prices by CoinGecko id
type Source struct {
	cfg     Config
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Collectors
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]entry
	group singleflight.Group
}

// NewSource creates a price source
func NewSource(cfg Config, log *zap.Logger, m *metrics.Collectors) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseDemo
		if cfg.Pro {
			cfg.BaseURL = BasePro
		}
	}
	if cfg.FreshFor <= 0 {
		cfg.FreshFor = DefaultFreshFor
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
		metrics: m,
		now:     time.Now,
		cache:   make(map[string]entry),
	}
}

// USD returns the USD price of the asset with the given CoinGecko id. Prices newer
// than the freshness window are served from memory; older ones are re-queried and
// never returned on failure.
func (s *Source) USD(ctx context.Context, id string) (float64, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return 0, fmt.Errorf("asset id is required")
	}

	if usd, ok := s.cached(id); ok {
		s.metrics.Price("cached")
		return usd, nil
	}

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		if usd, ok := s.cached(id); ok {
			return usd, nil
		}
		usd, err := s.fetch(ctx, id)
		if err != nil {
			return 0.0, err
		}
		s.mu.Lock()
		s.cache[id] = entry{usd: usd, fetchedAt: s.now()}
		s.mu.Unlock()
		return usd, nil
	})
	if err != nil {
		s.metrics.Price("error")
		s.log.Warn("price lookup failed", zap.String("id", id), zap.Error(err))
		return 0, err
	}
	s.metrics.Price("ok")
	return v.(float64), nil
}

func (s *Source) cached(id string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[id]
	if !ok || s.now().Sub(e.fetchedAt) >= s.cfg.FreshFor {
		return 0, false
	}
	return e.usd, true
}

func (s *Source) fetch(ctx context.Context, id string) (float64, error) {
	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/simple/price?ids=" + url.QueryEscape(id) + "&vs_currencies=usd"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build price request: %w", err)
	}
	if s.cfg.APIKey != "" {
		if s.cfg.Pro {
			req.Header.Set("x-cg-pro-api-key", s.cfg.APIKey)
		} else {
			req.Header.Set("x-cg-demo-api-key", s.cfg.APIKey)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, newHTTPError(resp, body)
	}

	var out map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode price response: %w", err)
	}

	raw, ok := out[id]["usd"]
	if !ok {
		return 0, fmt.Errorf("%w: no usd price for %s", ErrInvalidPrice, id)
	}
	usd, err := raw.Float64()
	if err != nil || math.IsNaN(usd) || math.IsInf(usd, 0) || usd <= 0 {
		return 0, fmt.Errorf("%w: %s for %s", ErrInvalidPrice, raw, id)
	}

	s.log.Debug("price fetched", zap.String("id", id), zap.Float64("usd", usd))
	return usd, nil
}
