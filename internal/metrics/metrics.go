// Package metrics exposes record store and synchronization metrics on the
// controller-runtime metrics registry.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

// Outcome label values.
const (
	OutcomeSuccess          = "success"
	OutcomeLogicalFailure   = "logical_failure"
	OutcomeTransportFailure = "transport_failure"
)

var (
	StoreRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dns_console",
		Name:      "store_requests_total",
		Help:      "Record store requests by operation and outcome.",
	}, []string{"op", "outcome"})

	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dns_console",
		Name:      "store_request_duration_seconds",
		Help:      "Record store request latency by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	StaleResponsesDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dns_console",
		Name:      "stale_list_responses_discarded_total",
		Help:      "List responses dropped because a newer one was already applied.",
	})
)

func init() {
	ctrlmetrics.Registry.MustRegister(StoreRequests, StoreLatency, StaleResponsesDiscarded)
}

// Outcome classifies a store error into an outcome label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var lf *dns.LogicalFailure
	if errors.As(err, &lf) {
		return OutcomeLogicalFailure
	}
	return OutcomeTransportFailure
}

// InstrumentedStore wraps a dns.Store and records request metrics.
type InstrumentedStore struct {
	Next dns.Store
}

var _ dns.Store = InstrumentedStore{}

func (s InstrumentedStore) observe(op string, start time.Time, err error) {
	StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	StoreRequests.WithLabelValues(op, Outcome(err)).Inc()
}

func (s InstrumentedStore) List(ctx context.Context) ([]dns.Record, error) {
	start := time.Now()
	records, err := s.Next.List(ctx)
	s.observe(dns.OpList, start, err)
	return records, err
}

func (s InstrumentedStore) Create(ctx context.Context, record dns.Record) error {
	start := time.Now()
	err := s.Next.Create(ctx, record)
	s.observe(dns.OpCreate, start, err)
	return err
}

func (s InstrumentedStore) Delete(ctx context.Context, domain string) error {
	start := time.Now()
	err := s.Next.Delete(ctx, domain)
	s.observe(dns.OpDelete, start, err)
	return err
}
