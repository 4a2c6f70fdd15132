package translate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanxat_provider_requests_total",
			Help: "Total number of translation provider calls",
		},
		[]string{"engine", "op", "status"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanxat_provider_request_duration_seconds",
			Help:    "Duration of translation provider calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"engine", "op"},
	)

	translationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanxat_translations_total",
			Help: "Total number of orchestrated translations",
		},
		[]string{"mode", "status"},
	)
)

// statusLabel classifies a provider error for metrics.
func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return strconv.Itoa(se.Code)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

type instrumented struct {
	next   Provider
	engine string
}

// Instrument records call counts and latency of next under the engine label.
func Instrument(next Provider, engine string) Provider {
	return &instrumented{next: next, engine: engine}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	providerRequestDuration.WithLabelValues(i.engine, op).Observe(time.Since(start).Seconds())
	providerRequestsTotal.WithLabelValues(i.engine, op, statusLabel(err)).Inc()
}

func (i *instrumented) Translate(ctx context.Context, credential, text, from, to string) (string, error) {
	start := time.Now()
	out, err := i.next.Translate(ctx, credential, text, from, to)
	i.observe("translate", start, err)
	return out, err
}

func (i *instrumented) Detect(ctx context.Context, credential, text string, hints []string) ([]string, error) {
	start := time.Now()
	out, err := i.next.Detect(ctx, credential, text, hints)
	i.observe("detect", start, err)
	return out, err
}
