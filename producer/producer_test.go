package producer

import (
	"errors"
	"testing"

	"github.com/ftahirops/dxagent/model"
)

type fakeProducer struct {
	name       string
	collectErr error
	exitErr    error
	collected  int
	exited     int
}

func (f *fakeProducer) Name() string { return f.name }
func (f *fakeProducer) Collect(store *model.Store) error {
	f.collected++
	return f.collectErr
}
func (f *fakeProducer) Exit() error {
	f.exited++
	return f.exitErr
}

func TestRegistryCollectAllContinuesPastFault(t *testing.T) {
	ok := &fakeProducer{name: "ok"}
	bad := &fakeProducer{name: "bad", collectErr: errors.New("boom")}
	ok2 := &fakeProducer{name: "ok2"}

	reg := NewRegistry()
	reg.Add(ok)
	reg.Add(bad)
	reg.Add(ok2)

	store := model.NewStore(4)
	reg.CollectAll(store)

	if ok.collected != 1 || bad.collected != 1 || ok2.collected != 1 {
		t.Fatalf("a faulting producer must not prevent later producers from running this tick: ok=%d bad=%d ok2=%d", ok.collected, bad.collected, ok2.collected)
	}
}

func TestRegistryExitAllRunsEveryProducer(t *testing.T) {
	a := &fakeProducer{name: "a", exitErr: errors.New("fail")}
	b := &fakeProducer{name: "b"}
	reg := NewRegistry()
	reg.Add(a)
	reg.Add(b)
	reg.ExitAll()
	if a.exited != 1 || b.exited != 1 {
		t.Fatalf("ExitAll must call every producer's Exit regardless of earlier failures: a=%d b=%d", a.exited, b.exited)
	}
}

func TestCPUProducerCollectPopulatesAggregateAndLoad(t *testing.T) {
	store := model.NewStore(4)
	p := &CPUProducer{}
	if err := p.Collect(store); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	dict, ok := store.Get("stat/cpu/cpu")
	if !ok {
		t.Fatal("expected stat/cpu/cpu aggregate scope to exist after Collect")
	}
	if _, ok := dict["load1"].Top(); !ok {
		t.Fatal("load1 should have a sample after Collect")
	}
	if _, ok := dict["user"].Top(); !ok {
		t.Fatal("user jiffies counter should have a sample after Collect")
	}
}

func TestMemoryProducerCollectPopulatesMeminfo(t *testing.T) {
	store := model.NewStore(4)
	p := &MemoryProducer{}
	if err := p.Collect(store); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	dict, ok := store.Get("meminfo")
	if !ok {
		t.Fatal("expected meminfo scope to exist after Collect")
	}
	if _, ok := dict["MemTotal"].Top(); !ok {
		t.Fatal("MemTotal should have a sample after Collect")
	}
}

func TestDiskProducerCollectPopulatesAggregateFreePct(t *testing.T) {
	store := model.NewStore(4)
	p := &DiskProducer{}
	if err := p.Collect(store); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	dict, ok := store.Get("diskstats")
	if !ok {
		t.Fatal("expected diskstats aggregate scope to exist after Collect")
	}
	if _, ok := dict["free_pct"].Top(); !ok {
		t.Fatal("free_pct should have a sample after Collect")
	}
}

func TestNetworkProducerCollectPopulatesSNMP(t *testing.T) {
	store := model.NewStore(4)
	p := &NetworkProducer{}
	if err := p.Collect(store); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	dict, ok := store.Get("snmp")
	if !ok {
		t.Fatal("expected snmp scope to exist after Collect")
	}
	if _, ok := dict["tcp_retrans_segs"].Top(); !ok {
		t.Fatal("tcp_retrans_segs should have a sample after Collect")
	}
}

func TestIsWholeDiskClassification(t *testing.T) {
	cases := map[string]bool{
		"sda":     true,
		"sda1":    false,
		"nvme0n1": true,
		"nvme0n1p1": false,
		"loop0":   false,
		"dm-0":    true,
		"vda":     true,
	}
	for name, want := range cases {
		if got := isWholeDisk(name); got != want {
			t.Errorf("isWholeDisk(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSysInfoProducerCachesAcrossCalls(t *testing.T) {
	store := model.NewStore(4)
	p := &SysInfoProducer{}
	if err := p.Collect(store); err != nil {
		t.Fatalf("first Collect: %v", err)
	}
	first := p.hostname
	if err := p.Collect(store); err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if p.hostname != first {
		t.Fatal("hostname should be detected once and cached, not re-detected every tick")
	}
	dict, _ := store.Get("sysinfo")
	if dict["hostname"].Len() != 2 {
		t.Fatalf("hostname ring buffer should have 2 samples after 2 ticks, got %d", dict["hostname"].Len())
	}
}
