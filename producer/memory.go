package producer

import (
	"fmt"
	"strings"

	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/util"
)

var meminfoNames = []string{
	"MemTotal", "MemFree", "MemAvailable", "Buffers", "Cached",
	"SwapTotal", "SwapFree", "SwapCached", "Dirty", "Writeback",
	"Slab", "SReclaimable", "SUnreclaim", "AnonPages", "Mapped", "Shmem",
}

var vmstatNames = []string{
	"pgfault", "pgmajfault", "pgpgin", "pgpgout", "pswpin", "pswpout",
	"pgsteal_direct", "pgsteal_kswapd", "pgscan_direct", "pgscan_kswapd",
	"oom_kill",
}

var vmstatDescriptors = vmstatCounterDescriptors()

func vmstatCounterDescriptors() map[string]model.Metric {
	d := make(map[string]model.Metric, len(vmstatNames))
	for _, name := range vmstatNames {
		d[name] = model.Metric{Name: name, OwnerClass: "mem", Type: model.TypeInt, IsCounter: true}
	}
	return d
}

// MemoryProducer reads /proc/meminfo and /proc/vmstat into the "meminfo"
// raw scope.
type MemoryProducer struct{}

func (p *MemoryProducer) Name() string { return "memory" }

func (p *MemoryProducer) Collect(store *model.Store) error {
	if err := p.collectMeminfo(store); err != nil {
		return err
	}
	return p.collectVmstat(store)
}

func (p *MemoryProducer) collectMeminfo(store *model.Store) error {
	kv, err := util.ParseKeyValueFile("/proc/meminfo")
	if err != nil {
		return fmt.Errorf("read /proc/meminfo: %w", err)
	}
	dict := store.Ensure("meminfo", meminfoNames, nil)
	for _, name := range meminfoNames {
		dict[name].Append(int64(parseKB(kv[name])))
	}
	return nil
}

func parseKB(s string) uint64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " kB")
	s = strings.TrimSuffix(s, "kB")
	return util.ParseUint64(strings.TrimSpace(s)) * 1024
}

func (p *MemoryProducer) collectVmstat(store *model.Store) error {
	kv, err := util.ParseKeyValueFile("/proc/vmstat")
	if err != nil {
		return fmt.Errorf("read /proc/vmstat: %w", err)
	}
	dict := store.Ensure("meminfo", vmstatNames, vmstatDescriptors)
	for _, name := range vmstatNames {
		dict[name].Append(util.ParseUint64(kv[name]))
	}
	return nil
}

func (p *MemoryProducer) Exit() error { return nil }
