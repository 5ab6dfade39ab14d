package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biovisor/biovisor/internal/domain"
)

// Metrics exposes hypervisor counters and gauges on a Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	utilization *prometheus.GaugeVec
	vmsByState  *prometheus.GaugeVec
	ticksTotal  prometheus.Counter
	throttled   prometheus.Counter
}

// NewMetrics builds and registers the hypervisor metric set on a fresh
// registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "biovisor_pool_utilization_percent",
			Help: "Allocated share of each resource dimension.",
		}, []string{"dimension"}),
		vmsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "biovisor_vms",
			Help: "Registered VMs by lifecycle state.",
		}, []string{"state"}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biovisor_scheduler_ticks_total",
			Help: "Completed scheduling rounds.",
		}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biovisor_throttled_slices_total",
			Help: "Slices reduced under contention.",
		}),
	}

	m.registry.MustRegister(m.utilization, m.vmsByState, m.ticksTotal, m.throttled)
	return m
}

// ObserveTick records the outcome of one scheduling round.
func (m *Metrics) ObserveTick(u domain.Utilization, vmStates map[domain.VMState]int, throttled int) {
	m.utilization.WithLabelValues(string(domain.DimRibosomes)).Set(u.RibosomesPct)
	m.utilization.WithLabelValues(string(domain.DimEnergy)).Set(u.EnergyPct)
	m.utilization.WithLabelValues(string(domain.DimMemory)).Set(u.MemoryPct)

	for _, state := range []domain.VMState{
		domain.VMStateCreated,
		domain.VMStateRunning,
		domain.VMStatePaused,
		domain.VMStateError,
	} {
		m.vmsByState.WithLabelValues(string(state)).Set(float64(vmStates[state]))
	}

	m.ticksTotal.Inc()
	m.throttled.Add(float64(throttled))
}

// Handler returns the scrape endpoint for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
