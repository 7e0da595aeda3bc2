package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	UpdateTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borderbot_update_ticks_total",
			Help: "Scheduled update ticks by outcome",
		},
		[]string{"outcome"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borderbot_deliveries_total",
			Help: "Border report deliveries by outcome",
		},
		[]string{"outcome"},
	)

	RegisteredChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "borderbot_registered_channels",
			Help: "Number of channels registered for broadcasts",
		},
	)

	LastUpdateTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "borderbot_last_update_timestamp_seconds",
			Help: "Unix time of the last broadcast snapshot",
		},
	)
)

const (
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeDelivered = "delivered"
)

func init() {
	prometheus.MustRegister(UpdateTicksTotal)
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(RegisteredChannels)
	prometheus.MustRegister(LastUpdateTimestamp)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logrus.Infof("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
