// Package consumer publishes assurance snapshots to external sinks: a
// stdout logger for interactive/verbose runs and a Prometheus exporter for
// scraped deployments.
package consumer

import "github.com/ftahirops/dxagent/model"

// Consumer receives one published AssuranceSnapshot per tick. Publish must
// not retain the snapshot's slices beyond the call if it intends to mutate
// them; NodeView/FiredSymptom are read-only views.
type Consumer interface {
	Publish(snap model.AssuranceSnapshot) error
}
