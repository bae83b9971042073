// Package metrics records vault call counts and latencies with Prometheus.
package metrics

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/systmms/credbox/pkg/vault"
)

var (
	vaultOpsTotal    *prometheus.CounterVec
	vaultOpDuration  *prometheus.HistogramVec
	vaultScanResults *prometheus.HistogramVec

	metricsOnce sync.Once
)

// InitMetrics registers the vault metrics with the default registry. It is
// safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		vaultOpsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credbox_vault_operations_total",
				Help: "Total number of vault operations by outcome status",
			},
			[]string{"backend", "op", "status"},
		)

		vaultOpDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credbox_vault_operation_duration_seconds",
				Help:    "Duration of vault operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend", "op"},
		)

		vaultScanResults = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credbox_vault_scan_keys",
				Help:    "Number of keys returned by vault scans",
				Buckets: prometheus.ExponentialBuckets(1, 4, 6),
			},
			[]string{"backend"},
		)
	})
}

// OpsTotal returns the operation counter. It is nil before InitMetrics.
func OpsTotal() *prometheus.CounterVec {
	return vaultOpsTotal
}

// OpDuration returns the operation latency histogram. It is nil before
// InitMetrics.
func OpDuration() *prometheus.HistogramVec {
	return vaultOpDuration
}

// WriteTextfile writes every metric in the default registry to path in the
// node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// InstrumentedVault wraps a vault.Vault and records each call.
type InstrumentedVault struct {
	next vault.Vault
}

// InstrumentVault wraps v, registering the metrics first if needed.
func InstrumentVault(v vault.Vault) *InstrumentedVault {
	InitMetrics()
	return &InstrumentedVault{next: v}
}

// Unwrap returns the instrumented vault.
func (i *InstrumentedVault) Unwrap() vault.Vault {
	return i.next
}

func (i *InstrumentedVault) observe(op string, start time.Time, status vault.Status) {
	backend := i.next.Name()
	vaultOpsTotal.WithLabelValues(backend, op, status.String()).Inc()
	vaultOpDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func (i *InstrumentedVault) Name() string {
	return i.next.Name()
}

func (i *InstrumentedVault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	start := time.Now()
	err := i.next.Put(ctx, fullKey, payload, access)
	i.observe("put", start, vault.StatusOf(err))
	return err
}

// Get records an absent item as item-not-found.
func (i *InstrumentedVault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	start := time.Now()
	item, found, err := i.next.Get(ctx, fullKey)
	status := vault.StatusOf(err)
	if err == nil && !found {
		status = vault.StatusItemNotFound
	}
	i.observe("get", start, status)
	return item, found, err
}

func (i *InstrumentedVault) Delete(ctx context.Context, fullKey string) error {
	start := time.Now()
	err := i.next.Delete(ctx, fullKey)
	i.observe("delete", start, vault.StatusOf(err))
	return err
}

func (i *InstrumentedVault) Scan(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := i.next.Scan(ctx, prefix)
	i.observe("scan", start, vault.StatusOf(err))
	if err == nil {
		vaultScanResults.WithLabelValues(i.next.Name()).Observe(float64(len(keys)))
	}
	return keys, err
}

// Close closes the wrapped vault if it holds resources.
func (i *InstrumentedVault) Close() error {
	if c, ok := i.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ vault.Vault = (*InstrumentedVault)(nil)
