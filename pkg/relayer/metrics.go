// Copyright 2025 Certen Protocol
//
// Prometheus metrics exposed on the admin HTTP surface alongside
// /health (spec §11): per-chain head-block gauges, queue depth
// gauges, submit/confirm counters, and the stall-recovery episode
// counter.

package relayer

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide Prometheus registry and the gauges/
// counters every chain's components update.
type Metrics struct {
	registry *prometheus.Registry

	HeadBlock         *prometheus.GaugeVec
	PendingQueueDepth *prometheus.GaugeVec
	EvalQueueDepth    *prometheus.GaugeVec
	SubmitQueueDepth  *prometheus.GaugeVec
	TransactionsSent  *prometheus.CounterVec
	Confirmations     *prometheus.CounterVec
	StallRecoveries   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HeadBlock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayer_chain_head_block",
			Help: "Latest observed block number per chain.",
		}, []string{"chain_id"}),
		PendingQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayer_pending_queue_depth",
			Help: "Orders waiting for eval/submit capacity, per destination chain.",
		}, []string{"chain_id"}),
		EvalQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayer_eval_queue_depth",
			Help: "Orders in the eval stage, per destination chain.",
		}, []string{"chain_id"}),
		SubmitQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayer_submit_queue_depth",
			Help: "Orders in the submit stage, per destination chain.",
		}, []string{"chain_id"}),
		TransactionsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_transactions_sent_total",
			Help: "Transactions broadcast, per destination chain.",
		}, []string{"chain_id"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_confirmations_total",
			Help: "Transactions confirmed, per destination chain and outcome.",
		}, []string{"chain_id", "outcome"}),
		StallRecoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_stall_recoveries_total",
			Help: "Stall-recovery episodes triggered, per destination chain.",
		}, []string{"chain_id"}),
	}

	reg.MustRegister(
		m.HeadBlock,
		m.PendingQueueDepth,
		m.EvalQueueDepth,
		m.SubmitQueueDepth,
		m.TransactionsSent,
		m.Confirmations,
		m.StallRecoveries,
	)
	return m
}

// Handler returns the http.Handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
