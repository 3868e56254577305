// Copyright 2025 Certen Protocol
//
// Package metrics wires the Prometheus registries for the Operator and
// Canceler processes. Every series name and label set here is a
// monitoring contract: dashboards and alerts key on them, so renames are
// breaking changes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this system exposes, alongside the
// prometheus.Registry they're registered against, so callers never touch
// the global default registry.
type Registry struct {
	reg *prometheus.Registry

	Up prometheus.Gauge

	BlocksProcessedTotal   *prometheus.CounterVec
	LatestBlock            *prometheus.GaugeVec
	DepositsDetectedTotal  *prometheus.CounterVec
	ApprovalsSubmittedTotal *prometheus.CounterVec
	ReleasesSubmittedTotal  *prometheus.CounterVec
	ProcessingLatencySeconds *prometheus.HistogramVec
	PendingDeposits          *prometheus.GaugeVec
	ErrorsTotal              *prometheus.CounterVec
	ConsecutiveFailures      *prometheus.GaugeVec
	LastSuccessfulPoll       *prometheus.GaugeVec

	FeesCollectedTotal *prometheus.CounterVec
	VolumeBridgedTotal *prometheus.CounterVec

	CancelerApprovalsVerifiedValidTotal   prometheus.Counter
	CancelerApprovalsVerifiedInvalidTotal prometheus.Counter
	CancelerApprovalsCancelledTotal       prometheus.Counter
	CancelerLastEVMBlockProcessed         prometheus.Gauge
	CancelerLastTerraHeightProcessed      prometheus.Gauge
}

// New builds and registers every metric series this system exposes.
// serviceName distinguishes the Operator's registry from the Canceler's
// when both happen to share a process in tests.
func New(serviceName string) *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{reg: reg}

	m.Up = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_up",
		Help: "1 if this process is running and past startup init, 0 otherwise.",
		ConstLabels: prometheus.Labels{"service": serviceName},
	})
	m.BlocksProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_blocks_processed_total",
		Help: "Total number of source blocks a watcher has durably processed.",
	}, []string{"chain"})
	m.LatestBlock = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayer_latest_block",
		Help: "Most recently observed chain head, before finality adjustment.",
	}, []string{"chain"})
	m.DepositsDetectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_deposits_detected_total",
		Help: "Total number of Deposit events a watcher has decoded and upserted.",
	}, []string{"chain"})
	m.ApprovalsSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_approvals_submitted_total",
		Help: "Total number of approval-writer submission outcomes.",
	}, []string{"chain", "status"})
	m.ReleasesSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_releases_submitted_total",
		Help: "Total number of release-writer submission outcomes.",
	}, []string{"chain", "status"})
	m.ProcessingLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayer_processing_latency_seconds",
		Help:    "Wall-clock seconds from deposit observation to destination confirmation.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s .. 8192s (~2.3h)
	}, []string{"direction"})
	m.PendingDeposits = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayer_pending_deposits",
		Help: "Number of observed deposits not yet enqueued as an approval/release row.",
	}, []string{"chain"})
	m.ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_errors_total",
		Help: "Total errors encountered, by chain and classified type.",
	}, []string{"chain", "type"})
	m.ConsecutiveFailures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayer_consecutive_failures",
		Help: "Current consecutive-failure count per writer's circuit breaker.",
	}, []string{"chain"})
	m.LastSuccessfulPoll = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayer_last_successful_poll_timestamp",
		Help: "Unix timestamp of a chain's last successful watcher poll cycle.",
	}, []string{"chain"})

	m.FeesCollectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_fees_collected_total",
		Help: "Total protocol fee collected on bridged deposits, in source-token base units.",
	}, []string{"chain", "token"})
	m.VolumeBridgedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_volume_bridged_total",
		Help: "Total bridged amount, in source-token base units.",
	}, []string{"chain", "token"})

	m.CancelerApprovalsVerifiedValidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "canceler_approvals_verified_valid_total",
		Help: "Total approvals the Canceler verified and found genuinely backed.",
	})
	m.CancelerApprovalsVerifiedInvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "canceler_approvals_verified_invalid_total",
		Help: "Total approvals the Canceler verified and found fraudulent or unverifiable.",
	})
	m.CancelerApprovalsCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "canceler_approvals_cancelled_total",
		Help: "Total cancelWithdrawApproval transactions the Canceler successfully submitted.",
	})
	m.CancelerLastEVMBlockProcessed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "canceler_last_evm_block_processed",
		Help: "Last EVM block height the Canceler's approval watcher has processed.",
	})
	m.CancelerLastTerraHeightProcessed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "canceler_last_terra_height_processed",
		Help: "Last Terra Classic height the Canceler's approval watcher has processed.",
	})

	reg.MustRegister(
		m.Up, m.BlocksProcessedTotal, m.LatestBlock, m.DepositsDetectedTotal,
		m.ApprovalsSubmittedTotal, m.ReleasesSubmittedTotal, m.ProcessingLatencySeconds,
		m.PendingDeposits, m.ErrorsTotal, m.ConsecutiveFailures, m.LastSuccessfulPoll,
		m.FeesCollectedTotal, m.VolumeBridgedTotal,
		m.CancelerApprovalsVerifiedValidTotal, m.CancelerApprovalsVerifiedInvalidTotal,
		m.CancelerApprovalsCancelledTotal, m.CancelerLastEVMBlockProcessed,
		m.CancelerLastTerraHeightProcessed,
	)
	m.Up.Set(1)
	return m
}

// Handler returns the http.Handler serving this registry's metrics in
// Prometheus text exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
