// Package metrics exports poll outcomes and switch state to Prometheus.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tejusbharadwaj/vueswitch/internal/models"
	"github.com/tejusbharadwaj/vueswitch/internal/monitor"
)

const namespace = "vueswitch"

// Collector implements monitor.Observer.
type Collector struct {
	Polls        *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	Watts        *prometheus.GaugeVec
	SwitchOn     prometheus.Gauge
	LastSuccess  prometheus.Gauge
	TickDuration prometheus.Histogram

	// gRPC request metrics, used by the server interceptors
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Number of channel evaluations by result.",
		}, []string{"result"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Number of failed channel evaluations by reason.",
		}, []string{"reason"}),
		Watts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_watts",
			Help:      "Last measured channel power in watts.",
		}, []string{"channel"}),
		SwitchOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "switch_on",
			Help:      "1 when the virtual switch is on.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful evaluation.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of scheduled state updates.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Number of gRPC requests by method and status code.",
		}, []string{"method", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	for _, col := range []prometheus.Collector{
		c.Polls, c.Failures, c.Watts, c.SwitchOn, c.LastSuccess, c.TickDuration, c.Requests, c.Latency,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveReading(_ context.Context, r models.Reading) {
	c.Polls.WithLabelValues("success").Inc()
	c.Watts.WithLabelValues(r.Channel).Set(r.Watts)
	c.SwitchOn.Set(boolToFloat(r.On))
	c.LastSuccess.Set(float64(r.Time.Unix()))
}

// ObserveFailure counts the failure; the switch falls back to off.
func (c *Collector) ObserveFailure(_ context.Context, err error) {
	c.Polls.WithLabelValues("failure").Inc()
	c.Failures.WithLabelValues(Reason(err)).Inc()
	c.SwitchOn.Set(0)
}

func (c *Collector) ObserveTick(d time.Duration, _ error) {
	c.TickDuration.Observe(d.Seconds())
}

// Reason maps an evaluation error to a low-cardinality label.
func Reason(err error) string {
	switch {
	case errors.Is(err, monitor.ErrAuthentication):
		return "authentication"
	case errors.Is(err, monitor.ErrDeviceList):
		return "device_list"
	case errors.Is(err, monitor.ErrChannelNotFound):
		return "channel_not_found"
	case errors.Is(err, monitor.ErrUsageFetch):
		return "usage_fetch"
	default:
		return "other"
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var _ monitor.Observer = (*Collector)(nil)
