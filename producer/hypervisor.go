package producer

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ftahirops/dxagent/model"
)

var vmStateDescriptors = map[string]model.Metric{
	"state": {Name: "state", OwnerClass: "vm", Type: model.TypeString},
}

var vmCPUDescriptors = map[string]model.Metric{
	"load_pct": {Name: "load_pct", OwnerClass: "cpu", Type: model.TypeFloat, Unit: "pct"},
}

var vmMemDescriptors = map[string]model.Metric{
	"used_kb": {Name: "used_kb", OwnerClass: "mem", Type: model.TypeInt, Unit: "kb"},
}

// VirtualBoxProducer shells out to VBoxManage to list running VMs, then
// query basic per-VM CPU/memory metrics. Missing binary or command failure
// is a soft no-op — VirtualBox is an optional collaborator, never a fatal
// dependency.
type VirtualBoxProducer struct {
	mu        sync.Mutex
	instances map[string]string // name -> "virtualbox"
}

func (p *VirtualBoxProducer) Name() string { return "hypervisor-virtualbox" }

func (p *VirtualBoxProducer) Collect(store *model.Store) error {
	if _, err := exec.LookPath("VBoxManage"); err != nil {
		p.setInstances(nil)
		return nil // absent binary: MissingScope at the source, not an error
	}

	running := make(map[string]struct{})
	for _, name := range p.listRunningVMs() {
		running[name] = struct{}{}
	}

	names := p.listAllVMs()
	observed := make(map[string]string, len(names))
	for _, name := range names {
		observed[name] = "virtualbox"
		base := "virtualbox/vms/" + name

		var state string
		if _, ok := running[name]; ok {
			state = "running"
			p.queryMetrics(store, name, base)
		} else {
			state = p.queryVMState(name)
		}
		store.Ensure(base, []string{"state"}, vmStateDescriptors)["state"].Append(state)
	}
	p.setInstances(observed)
	return nil
}

func (p *VirtualBoxProducer) setInstances(m map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances = m
}

// Instances returns the VM name->hypervisor-label set observed on the last
// Collect, for the engine to reconcile the graph against.
func (p *VirtualBoxProducer) Instances() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instances
}

func (p *VirtualBoxProducer) listRunningVMs() []string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "VBoxManage", "list", "runningvms").Output()
	if err != nil {
		return nil
	}
	return parseVMNameList(string(out))
}

// listAllVMs returns every registered VM, running or not, so a powered-off
// VM stays a member of the observed set (and so its subtree isn't pruned by
// reconciliation just because it's inactive).
func (p *VirtualBoxProducer) listAllVMs() []string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "VBoxManage", "list", "vms").Output()
	if err != nil {
		return nil
	}
	return parseVMNameList(string(out))
}

// parseVMNameList parses the `"name" {uuid}` lines common to both
// `VBoxManage list vms` and `VBoxManage list runningvms`.
func parseVMNameList(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Format: "vmname" {uuid}
		end := strings.LastIndex(line, "\" {")
		if !strings.HasPrefix(line, "\"") || end < 1 {
			continue
		}
		names = append(names, line[1:end])
	}
	return names
}

// queryVMState reads a stopped VM's actual power state (e.g. "poweroff",
// "saved", "aborted") via showvminfo's machine-readable VMState field,
// rather than assuming every VM not in the running set shares one state.
func (p *VirtualBoxProducer) queryVMState(name string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "VBoxManage", "showvminfo", name, "--machinereadable").Output()
	if err != nil {
		return "unknown"
	}
	state, ok := parseVMState(string(out))
	if !ok {
		return "unknown"
	}
	return state
}

// parseVMState extracts the VMState="..." field from showvminfo
// --machinereadable output.
func parseVMState(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "VMState=") {
			continue
		}
		v := strings.TrimPrefix(line, "VMState=")
		v = strings.Trim(v, `"`)
		if v != "" {
			return v, true
		}
	}
	return "", false
}

func (p *VirtualBoxProducer) queryMetrics(store *model.Store, name, base string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "VBoxManage", "metrics", "query", name,
		"CPU/Load/User,RAM/Usage/Used").Output()
	if err != nil {
		return
	}
	// Format (one data line per metric):
	// CPU/Load/User   %          12
	// RAM/Usage/Used  kB         524288
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		switch fields[0] {
		case "CPU/Load/User":
			if v, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
				store.Ensure(base+"/cpu", []string{"load_pct"}, vmCPUDescriptors)["load_pct"].Append(v)
			}
		case "RAM/Usage/Used":
			if v, err := strconv.ParseInt(fields[len(fields)-1], 10, 64); err == nil {
				store.Ensure(base+"/mem", []string{"used_kb"}, vmMemDescriptors)["used_kb"].Append(v)
			}
		}
	}
}

func (p *VirtualBoxProducer) Exit() error { return nil }
