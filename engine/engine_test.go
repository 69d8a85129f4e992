package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ftahirops/dxagent/consumer"
	"github.com/ftahirops/dxagent/graph"
	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/producer"
	"github.com/ftahirops/dxagent/registry"
	"github.com/ftahirops/dxagent/rules"
)

func newFixture(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()

	metricsPath := filepath.Join(dir, "metrics.csv")
	if err := os.WriteFile(metricsPath, []byte(`name,owner_class,type,unit,is_list,is_counter,warn,crit
state,vm,str,,0,0,,
status,kb,str,,0,0,,
`), 0o644); err != nil {
		t.Fatalf("write metrics.csv: %v", err)
	}
	reg, errs := registry.Load(metricsPath)
	if len(errs) != 0 {
		t.Fatalf("registry.Load errors: %v", errs)
	}

	rulesPath := filepath.Join(dir, "rules.csv")
	if err := os.WriteFile(rulesPath, []byte(`name,path,severity,rule
vm_not_running,node/vm,red,not state == "running"
kb_out_of_sync,node/kb,red,not status == "synced"
`), 0o644); err != nil {
		t.Fatalf("write rules.csv: %v", err)
	}
	rs, errs := rules.Load(rulesPath, reg)
	if len(errs) != 0 {
		t.Fatalf("rules.Load errors: %v", errs)
	}

	store := model.NewStore(8)
	g := graph.New(store, reg, rs)
	return New(store, reg, rs, g, producer.NewRegistry(), nil)
}

// recordingProducer and recordingLister let a test drive the engine's VM
// reconciliation without depending on a real VirtualBoxProducer's os/exec
// shellout.
type recordingProducer struct {
	collected int
	instances map[string]string
}

func (p *recordingProducer) Name() string { return "recording" }
func (p *recordingProducer) Collect(*model.Store) error {
	p.collected++
	return nil
}
func (p *recordingProducer) Exit() error                  { return nil }
func (p *recordingProducer) Instances() map[string]string { return p.instances }

func TestEngineTickIncrementsAndPublishes(t *testing.T) {
	e := newFixture(t)
	var published []model.AssuranceSnapshot
	e.Consumers = []consumer.Consumer{recordingConsumer(&published)}

	snap1 := e.Tick(time.Unix(1000, 0))
	snap2 := e.Tick(time.Unix(1001, 0))

	if snap1.Tick != 1 || snap2.Tick != 2 {
		t.Fatalf("ticks = %d, %d, want 1, 2", snap1.Tick, snap2.Tick)
	}
	if len(published) != 2 {
		t.Fatalf("expected 2 published snapshots, got %d", len(published))
	}
}

func TestEngineTickReconcilesVMsFromLister(t *testing.T) {
	e := newFixture(t)
	vmProd := &recordingProducer{instances: map[string]string{"vm1": "kvm"}}

	// Use() type-switches on concrete producer types to find the VM/KBNet
	// lister; a plain recordingProducer isn't one of those, so wire it
	// through the Engine's own vmLister field directly to exercise Tick's
	// reconciliation path without needing the real VirtualBoxProducer.
	e.Producers.Add(vmProd)
	e.vmLister = vmProd

	snap := e.Tick(time.Unix(1000, 0))
	if _, ok := snap.ByID("node/vm/vm1"); !ok {
		t.Fatalf("expected a reconciled vm1 node in the snapshot, got %v", snap.Nodes)
	}
}

func TestEngineTickRemovesVMWhenNoLongerObserved(t *testing.T) {
	e := newFixture(t)
	vmProd := &recordingProducer{instances: map[string]string{"vm1": "kvm"}}
	e.vmLister = vmProd

	snap := e.Tick(time.Unix(1000, 0))
	if _, ok := snap.ByID("node/vm/vm1"); !ok {
		t.Fatal("vm1 should be present after the first tick")
	}

	vmProd.instances = nil
	snap = e.Tick(time.Unix(1001, 0))
	if _, ok := snap.ByID("node/vm/vm1"); ok {
		t.Fatal("vm1 should be removed once no longer observed")
	}
}

func TestEngineConsumerFaultDoesNotStopOtherConsumers(t *testing.T) {
	e := newFixture(t)
	var published []model.AssuranceSnapshot
	e.Consumers = []consumer.Consumer{
		faultingConsumer{},
		recordingConsumer(&published),
	}
	e.Tick(time.Unix(1000, 0))
	if len(published) != 1 {
		t.Fatal("a faulting consumer must not prevent a later consumer from publishing")
	}
}

type faultingConsumer struct{}

func (faultingConsumer) Publish(model.AssuranceSnapshot) error {
	return errors.New("boom")
}

type recorder struct {
	out *[]model.AssuranceSnapshot
}

func (r recorder) Publish(snap model.AssuranceSnapshot) error {
	*r.out = append(*r.out, snap)
	return nil
}

func recordingConsumer(out *[]model.AssuranceSnapshot) consumer.Consumer {
	return recorder{out: out}
}
