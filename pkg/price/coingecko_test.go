package price

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSource(t *testing.T, handler http.HandlerFunc, cfg Config) (*Source, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	return NewSource(cfg, zap.NewNop(), nil), &hits
}

func TestUSD(t *testing.T) {
	src, hits := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "arbitrum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		fmt.Fprint(w, `{"arbitrum":{"usd":0.75}}`)
	}, Config{})

	usd, err := src.USD(context.Background(), "arbitrum")
	require.NoError(t, err)
	assert.Equal(t, 0.75, usd)
	assert.Equal(t, int32(1), *hits)
}

func TestUSDSendsAPIKey(t *testing.T) {
	src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-cg-pro-api-key"))
		assert.Empty(t, r.Header.Get("x-cg-demo-api-key"))
		fmt.Fprint(w, `{"usd-coin":{"usd":1.0001}}`)
	}, Config{APIKey: "secret", Pro: true})

	usd, err := src.USD(context.Background(), "usd-coin")
	require.NoError(t, err)
	assert.Equal(t, 1.0001, usd)
}

func TestUSDInvalidResponses(t *testing.T) {
	bodies := map[string]string{
		"missing asset": `{}`,
		"missing usd":   `{"arbitrum":{"eur":1}}`,
		"zero":          `{"arbitrum":{"usd":0}}`,
		"negative":      `{"arbitrum":{"usd":-2}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}, Config{})
			_, err := src.USD(context.Background(), "arbitrum")
			assert.ErrorIs(t, err, ErrInvalidPrice)
		})
	}
}

func TestUSDHTTPError(t *testing.T) {
	src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"status":{"error_message":"You've exceeded the Rate Limit"}}`)
	}, Config{})

	_, err := src.USD(context.Background(), "arbitrum")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
	assert.True(t, httpErr.RateLimited)
}

func TestUSDCachesWithinFreshness(t *testing.T) {
	price := "0.75"
	src, hits := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"arbitrum":{"usd":%s}}`, price)
	}, Config{FreshFor: time.Minute})

	now := time.Now()
	src.now = func() time.Time { return now }

	first, err := src.USD(context.Background(), "arbitrum")
	require.NoError(t, err)

	price = "0.8"
	now = now.Add(30 * time.Second)
	second, err := src.USD(context.Background(), "Arbitrum")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), *hits)

	now = now.Add(time.Minute)
	third, err := src.USD(context.Background(), "arbitrum")
	require.NoError(t, err)
	assert.Equal(t, 0.8, third)
	assert.Equal(t, int32(2), *hits)
}

func TestUSDDoesNotServeStaleOnFailure(t *testing.T) {
	fail := false
	src, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"arbitrum":{"usd":0.75}}`)
	}, Config{FreshFor: time.Minute})

	now := time.Now()
	src.now = func() time.Time { return now }

	_, err := src.USD(context.Background(), "arbitrum")
	require.NoError(t, err)

	fail = true
	now = now.Add(2 * time.Minute)
	_, err = src.USD(context.Background(), "arbitrum")
	assert.Error(t, err)
}

func TestUSDDeduplicatesConcurrentLookups(t *testing.T) {
	release := make(chan struct{})
	src, hits := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, `{"dai":{"usd":0.9998}}`)
	}, Config{})

	var wg sync.WaitGroup
	results := make([]float64, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			usd, err := src.USD(context.Background(), "dai")
			assert.NoError(t, err)
			results[i] = usd
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, usd := range results {
		assert.Equal(t, 0.9998, usd)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestUSDRequiresID(t *testing.T) {
	src := NewSource(Config{}, nil, nil)
	_, err := src.USD(context.Background(), " ")
	assert.Error(t, err)
}

func TestNewSourceSelectsHost(t *testing.T) {
	assert.Equal(t, BaseDemo, NewSource(Config{}, nil, nil).cfg.BaseURL)
	assert.Equal(t, BasePro, NewSource(Config{Pro: true, APIKey: "k"}, nil, nil).cfg.BaseURL)
	assert.Equal(t, "http://localhost:9000", NewSource(Config{Pro: true, BaseURL: "http://localhost:9000"}, nil, nil).cfg.BaseURL)
}
