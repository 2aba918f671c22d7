// Package metrics exposes the core's Prometheus collectors. The core never
// serves them; the host mounts Registry() on whatever endpoint it owns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the core's collectors on a private registry so embedding
// hosts don't collide with the default global one.
type Metrics struct {
	registry *prometheus.Registry

	RequestsRouted  *prometheus.CounterVec
	Threshold       prometheus.Gauge
	Redactions      *prometheus.CounterVec
	SandboxBlocks   *prometheus.CounterVec
	SwarmUploads    *prometheus.CounterVec
	GRPOUpdates     *prometheus.CounterVec
	PatternTransfer *prometheus.CounterVec
}

// New creates the collector set.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RequestsRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogito",
		Name:      "requests_routed_total",
		Help:      "Requests routed, labeled by assigned system.",
	}, []string{"system"})

	m.Threshold = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cogito",
		Name:      "router_threshold",
		Help:      "Current complexity routing threshold.",
	})

	m.Redactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogito",
		Name:      "privacy_redactions_total",
		Help:      "Scrubber redactions, labeled by rule category.",
	}, []string{"category"})

	m.SandboxBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogito",
		Name:      "sandbox_blocks_total",
		Help:      "Commands blocked by the sandbox deny list.",
	}, []string{"rule"})

	m.SwarmUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogito",
		Name:      "swarm_uploads_total",
		Help:      "Swarm upload attempts, labeled by result status.",
	}, []string{"status"})

	m.GRPOUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogito",
		Name:      "grpo_updates_total",
		Help:      "GRPO weight updates, labeled by domain.",
	}, []string{"domain"})

	m.PatternTransfer = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogito",
		Name:      "pattern_transfers_total",
		Help:      "S1<->S2 pattern transfers, labeled by event.",
	}, []string{"event"})

	m.registry.MustRegister(
		m.RequestsRouted, m.Threshold, m.Redactions, m.SandboxBlocks,
		m.SwarmUploads, m.GRPOUpdates, m.PatternTransfer,
	)
	return m
}

// Registry returns the private registry for the host to mount.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
