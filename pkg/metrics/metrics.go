package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Solana-ZH/orcacpi/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	VerifyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orcacpi_verify_runs_total",
			Help: "Total number of verification runs by outcome",
		},
		[]string{"outcome", "kind"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orcacpi_stage_duration_seconds",
			Help:    "Verification stage duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// Quote metrics
	QuotedAmountOut = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orcacpi_quoted_amount_out",
		Help: "Expected output of the last quote in base units",
	})

	ObservedAmountOut = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orcacpi_observed_amount_out",
		Help: "Observed output balance change of the last verified swap in base units",
	})

	MarketDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orcacpi_market_drift_total",
		Help: "Total number of runs whose market moved between build and quote",
	})
)

// RecordStage observes the duration of one stage.
func RecordStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts a finished run. kind is empty for passing runs.
func RecordRun(outcome, kind string) {
	VerifyRuns.WithLabelValues(outcome, kind).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	log := utils.Logger("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
