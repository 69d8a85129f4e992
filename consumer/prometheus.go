package consumer

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ftahirops/dxagent/model"
)

// PrometheusConsumer republishes each tick's snapshot onto a Prometheus
// registry: a health-score gauge per node, a symptom-firing gauge per
// (node, symptom) pair. Stale series from nodes/symptoms that disappeared
// between ticks (an instance removed by reconciliation) are reset every
// publish rather than left to linger at their last value.
type PrometheusConsumer struct {
	reg     *prom.Registry
	health  *prom.GaugeVec
	symptom *prom.GaugeVec
	handler http.Handler
}

// NewPrometheusConsumer builds a fresh registry with the two gauge vectors
// this agent exposes.
func NewPrometheusConsumer() *PrometheusConsumer {
	reg := prom.NewRegistry()

	health := prom.NewGaugeVec(prom.GaugeOpts{
		Name: "dxagent_health_score",
		Help: "Aggregate health score (0-100) of a subservice node.",
	}, []string{"node", "owner_class"})

	symptom := prom.NewGaugeVec(prom.GaugeOpts{
		Name: "dxagent_symptom_firing",
		Help: "1 if the named symptom is currently firing on the node, 0 otherwise.",
	}, []string{"node", "symptom"})

	reg.MustRegister(health, symptom)

	return &PrometheusConsumer{
		reg:     reg,
		health:  health,
		symptom: symptom,
		handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
}

// Handler returns the /metrics HTTP handler to mount on a listener.
func (c *PrometheusConsumer) Handler() http.Handler { return c.handler }

func (c *PrometheusConsumer) Publish(snap model.AssuranceSnapshot) error {
	c.health.Reset()
	c.symptom.Reset()
	for _, n := range snap.Nodes {
		c.health.WithLabelValues(n.ID, n.OwnerClass).Set(float64(n.HealthScore))
		for _, sym := range n.Symptoms {
			c.symptom.WithLabelValues(n.ID, sym.Name).Set(1)
		}
	}
	return nil
}
