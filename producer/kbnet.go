package producer

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/ftahirops/dxagent/model"
)

var kbStatusDescriptors = map[string]model.Metric{
	"status": {Name: "status", OwnerClass: "kb", Type: model.TypeString},
}

var kbProcDescriptors = map[string]model.Metric{
	"worker_count": {Name: "worker_count", OwnerClass: "proc", Type: model.TypeInt},
}

var kbMemDescriptors = map[string]model.Metric{
	"used_kb": {Name: "used_kb", OwnerClass: "mem", Type: model.TypeInt, Unit: "kb"},
}

// vppStatsFile is the decoded shape of the stats snapshot a VPP gNMI
// sidecar exporter would write, simplified to what this agent needs.
type vppStatsFile struct {
	Instances map[string]struct {
		Status      string `json:"status"` // "synced" when in sync with the controller
		WorkerCount int64  `json:"worker_count"`
		UsedKB      int64  `json:"used_kb"`
	} `json:"instances"`
}

// KBNetProducer polls a local stats file a VPP (or similar kernel-bypass
// dataplane) sidecar exporter maintains. Absence of the file is a soft
// no-op: kernel-bypass networking is an optional collaborator.
type KBNetProducer struct {
	StatsPath string // defaults to /run/vpp/stats.json

	mu        sync.Mutex
	instances map[string]string
}

func (p *KBNetProducer) path() string {
	if p.StatsPath != "" {
		return p.StatsPath
	}
	return "/run/vpp/stats.json"
}

func (p *KBNetProducer) Name() string { return "kbnet-vpp" }

func (p *KBNetProducer) Collect(store *model.Store) error {
	data, err := os.ReadFile(p.path())
	if err != nil {
		p.setInstances(nil)
		return nil
	}
	var parsed vppStatsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		p.setInstances(nil)
		return nil
	}

	observed := make(map[string]string, len(parsed.Instances))
	for name, inst := range parsed.Instances {
		observed[name] = "vpp"
		base := "vpp/gnmi/" + name
		store.Ensure(base, []string{"status"}, kbStatusDescriptors)["status"].Append(inst.Status)
		store.Ensure(base+"/proc", []string{"worker_count"}, kbProcDescriptors)["worker_count"].Append(inst.WorkerCount)
		store.Ensure(base+"/mem", []string{"used_kb"}, kbMemDescriptors)["used_kb"].Append(inst.UsedKB)
	}
	p.setInstances(observed)
	return nil
}

func (p *KBNetProducer) setInstances(m map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances = m
}

// Instances returns the kernel-bypass-net name->framework-label set
// observed on the last Collect.
func (p *KBNetProducer) Instances() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instances
}

func (p *KBNetProducer) Exit() error { return nil }
