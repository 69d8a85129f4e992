// Package engine ties the metric store, registry, ruleset, dependency
// graph, producers and consumers together into the per-tick update loop:
// collect raw input, reconcile the graph's dynamic subtrees, refresh each
// node's own metrics, recompute health, and publish the resulting
// snapshot.
package engine

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ftahirops/dxagent/consumer"
	"github.com/ftahirops/dxagent/graph"
	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/producer"
	"github.com/ftahirops/dxagent/registry"
	"github.com/ftahirops/dxagent/rules"
)

// instanceLister is implemented by producers that discover a dynamic set
// of named instances (VMs, kernel-bypass-net contexts) the graph must
// reconcile against. Not every producer implements it.
type instanceLister interface {
	Instances() map[string]string
}

// Engine owns one full agent run: the store, the compiled registry and
// ruleset, the dependency graph, the producer registry and the consumers
// that receive each tick's snapshot.
type Engine struct {
	Store     *model.Store
	Registry  *registry.Registry
	Rules     *rules.Ruleset
	Graph     *graph.Graph
	Producers *producer.Registry
	Consumers []consumer.Consumer

	tick        int64
	vmLister    instanceLister
	kbNetLister instanceLister
}

// New wires an Engine from its already-loaded components.
func New(store *model.Store, reg *registry.Registry, rs *rules.Ruleset, g *graph.Graph, producers *producer.Registry, consumers []consumer.Consumer) *Engine {
	return &Engine{
		Store:     store,
		Registry:  reg,
		Rules:     rs,
		Graph:     g,
		Producers: producers,
		Consumers: consumers,
	}
}

// Tick runs one full collect/reconcile/refresh/score/publish cycle and
// returns the snapshot it produced.
func (e *Engine) Tick(now time.Time) model.AssuranceSnapshot {
	e.tick++
	nowUnix := now.Unix()

	e.Producers.CollectAll(e.Store)

	var vms, kbs map[string]string
	if e.vmLister != nil {
		vms = e.vmLister.Instances()
	}
	if e.kbNetLister != nil {
		kbs = e.kbNetLister.Instances()
	}

	e.Graph.Reconcile(vms, kbs, nowUnix)
	e.Graph.RefreshMetrics()
	e.Graph.UpdateHealth(nowUnix)

	snap := e.Graph.Snapshot(e.tick)
	for _, c := range e.Consumers {
		if err := c.Publish(snap); err != nil {
			log.Printf("dxagent: consumer publish: %v", err)
		}
	}
	return snap
}

// Use registers a producer with the underlying producer registry. If it
// also discovers a dynamic VM or kernel-bypass-net instance set, it is
// additionally wired into the graph's per-tick reconciliation.
func (e *Engine) Use(p producer.Producer) {
	e.Producers.Add(p)
	switch p.(type) {
	case *producer.VirtualBoxProducer:
		e.vmLister = p.(instanceLister)
	case *producer.KBNetProducer:
		e.kbNetLister = p.(instanceLister)
	}
}

// Run drives Tick on a fixed interval until ctx is cancelled or a
// SIGINT/SIGTERM arrives: a plain ticker-plus-signal daemon loop, with no
// incident persistence or alerting of its own.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Producers.ExitAll()
			return nil
		case now := <-ticker.C:
			e.Tick(now)
		}
	}
}
