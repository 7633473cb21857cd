package monitor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"deposit-core/pkg/stampede"
)

// BusinessMetrics covers webhook reconciliation, cache and provider health.
type BusinessMetrics struct {
	WebhookOutcomesTotal    *prometheus.CounterVec
	CreditedAmountTotal     *prometheus.CounterVec
	CacheRequestsTotal      *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderAssetBalance    *prometheus.GaugeVec
	LedgerLiability         *prometheus.GaugeVec
	OutboxRelayedTotal      *prometheus.CounterVec
}

// Business is registered on the default registry when the package loads.
var Business = &BusinessMetrics{
	WebhookOutcomesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposit_webhook_outcomes_total",
		Help: "Provider webhooks by event kind and outcome",
	}, []string{"kind", "outcome"}),
	CreditedAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposit_credited_amount_total",
		Help: "Amount credited to users by currency",
	}, []string{"currency"}),
	CacheRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposit_cache_requests_total",
		Help: "Balance cache lookups by read shape and result",
	}, []string{"shape", "result"}),
	ProviderRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deposit_provider_request_duration_seconds",
		Help:    "Latency of payment provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "result"}),
	ProviderAssetBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deposit_provider_asset_balance",
		Help: "Merchant balance held at the provider by coin",
	}, []string{"coin"}),
	LedgerLiability: promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deposit_ledger_liability",
		Help: "Sum of user ledger balances by currency",
	}, []string{"currency"}),
	OutboxRelayedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposit_outbox_relayed_total",
		Help: "Outbox messages relayed to the broker by result",
	}, []string{"result"}),
}

// RegisterStampede publishes a guard's counters under the given name.
// stats is usually a method value such as guard.Stats.
func RegisterStampede(name string, stats func() stampede.Stats) error {
	labels := prometheus.Labels{"guard": name}
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "deposit_stampede_started_total", Help: "Computations launched", ConstLabels: labels,
		}, func() float64 { return float64(stats().Started) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "deposit_stampede_joined_total", Help: "Callers joined to an in-flight computation", ConstLabels: labels,
		}, func() float64 { return float64(stats().Joined) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "deposit_stampede_reaped_total", Help: "Pending computations discarded", ConstLabels: labels,
		}, func() float64 { return float64(stats().Reaped) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "deposit_stampede_pending", Help: "Computations currently in flight", ConstLabels: labels,
		}, func() float64 { return float64(stats().Pending) }),
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
