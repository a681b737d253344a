package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collectors groups the purchase metrics. A nil *Collectors records nothing.
type Collectors struct {
	TxSubmitted     prometheus.Counter
	TxConfirmed     prometheus.Counter
	StatusPolls     *prometheus.CounterVec
	Attempts        *prometheus.CounterVec
	PriceFetches    *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		TxSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbbuy_transactions_submitted_total",
			Help: "Transactions handed to the signer",
		}),
		TxConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbbuy_transactions_confirmed_total",
			Help: "Transactions mined successfully",
		}),
		StatusPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbbuy_bridge_status_polls_total",
			Help: "Bridge status queries by result",
		}, []string{"result"}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbbuy_attempts_total",
			Help: "Purchase attempts by outcome",
		}, []string{"outcome"}),
		PriceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbbuy_price_fetches_total",
			Help: "Price lookups by result",
		}, []string{"result"}),
		AttemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbbuy_attempt_duration_seconds",
			Help:    "Wall time of a purchase attempt",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		}),
	}
	if reg != nil {
		reg.MustRegister(
			c.TxSubmitted,
			c.TxConfirmed,
			c.StatusPolls,
			c.Attempts,
			c.PriceFetches,
			c.AttemptDuration,
		)
	}
	return c
}

// Submitted counts a transaction handed to the signer
func (c *Collectors) Submitted() {
	if c == nil {
		return
	}
	c.TxSubmitted.Inc()
}

// Confirmed counts a mined transaction
func (c *Collectors) Confirmed() {
	if c == nil {
		return
	}
	c.TxConfirmed.Inc()
}

// Poll counts one bridge status query
func (c *Collectors) Poll(result string) {
	if c == nil {
		return
	}
	c.StatusPolls.WithLabelValues(result).Inc()
}

// Attempt records the outcome and duration of one purchase attempt
func (c *Collectors) Attempt(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(outcome).Inc()
	c.AttemptDuration.Observe(took.Seconds())
}

// Price counts one price lookup
func (c *Collectors) Price(result string) {
	if c == nil {
		return
	}
	c.PriceFetches.WithLabelValues(result).Inc()
}

// Serve starts the metrics and health-check HTTP server until ctx is done
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log *zap.Logger) {
	if addr == "" {
		log.Debug("metrics disabled: empty addr")
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown error", zap.Error(err))
		}
	}()
}

// Handler returns the /metrics handler for reg, or the default gatherer when reg is nil
func Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
