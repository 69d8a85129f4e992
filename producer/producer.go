// Package producer implements the real, working input adapters that write
// raw telemetry into the metric store's raw-input scope, one producer per
// external source, matching the Producer capability interface named in
// spec.md's Design Notes.
package producer

import (
	"log"

	"github.com/ftahirops/dxagent/model"
)

// Producer is one external telemetry source. Collect writes samples into
// the raw-input scope of store; a returned error is a spec.md ProducerFault
// — the registry logs it and keeps running the producer on later ticks.
// Exit releases any held resources (open files, spawned subprocesses) when
// the agent shuts down.
type Producer interface {
	Name() string
	Collect(store *model.Store) error
	Exit() error
}

// Registry holds the set of active producers and runs them each tick.
type Registry struct {
	producers []Producer
}

// NewRegistry creates an empty producer registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a producer.
func (r *Registry) Add(p Producer) {
	r.producers = append(r.producers, p)
}

// CollectAll runs every producer's Collect against store. A producer fault
// is logged and does not stop the remaining producers from running.
func (r *Registry) CollectAll(store *model.Store) {
	for _, p := range r.producers {
		if err := p.Collect(store); err != nil {
			log.Printf("dxagent: producer %s: %v", p.Name(), err)
		}
	}
}

// ExitAll calls Exit on every producer, logging (not stopping on) failures.
func (r *Registry) ExitAll() {
	for _, p := range r.producers {
		if err := p.Exit(); err != nil {
			log.Printf("dxagent: producer %s: exit: %v", p.Name(), err)
		}
	}
}
