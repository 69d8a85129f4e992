package producer

import (
	"fmt"
	"strings"

	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/util"
)

// cpuCounterNames are the /proc/stat jiffy counters, all monotonic.
var cpuCounterNames = []string{
	"user", "nice", "system", "idle", "iowait", "irq", "softirq", "steal", "guest", "guest_nice",
}

var cpuDescriptors = cpuTimeDescriptors()

func cpuTimeDescriptors() map[string]model.Metric {
	d := make(map[string]model.Metric, len(cpuCounterNames)+3)
	for _, name := range cpuCounterNames {
		d[name] = model.Metric{Name: name, OwnerClass: "cpu", Type: model.TypeInt, Unit: "jiffies", IsCounter: true}
	}
	d["load1"] = model.Metric{Name: "load1", OwnerClass: "cpu", Type: model.TypeFloat, Unit: "load"}
	d["load5"] = model.Metric{Name: "load5", OwnerClass: "cpu", Type: model.TypeFloat, Unit: "load"}
	d["load15"] = model.Metric{Name: "load15", OwnerClass: "cpu", Type: model.TypeFloat, Unit: "load"}
	return d
}

// CPUProducer reads /proc/stat and /proc/loadavg, writing one raw scope per
// CPU label ("cpu" for the aggregate, "cpu0", "cpu1", ... per core) under
// stat/cpu/<label>, plus load averages onto the aggregate scope.
type CPUProducer struct{}

func (p *CPUProducer) Name() string { return "cpu" }

func (p *CPUProducer) Collect(store *model.Store) error {
	if err := p.collectStat(store); err != nil {
		return err
	}
	return p.collectLoadAvg(store)
}

func (p *CPUProducer) collectStat(store *model.Store) error {
	lines, err := util.ReadFileLines("/proc/stat")
	if err != nil {
		return fmt.Errorf("read /proc/stat: %w", err)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		label := fields[0]
		dict := store.Ensure("stat/cpu/"+label, cpuCounterNames, cpuDescriptors)
		for i, name := range cpuCounterNames {
			idx := i + 1
			if idx >= len(fields) {
				break
			}
			dict[name].Append(util.ParseUint64(fields[idx]))
		}
	}
	return nil
}

func (p *CPUProducer) collectLoadAvg(store *model.Store) error {
	content, err := util.ReadFileString("/proc/loadavg")
	if err != nil {
		return fmt.Errorf("read /proc/loadavg: %w", err)
	}
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return fmt.Errorf("unexpected /proc/loadavg format")
	}
	dict := store.Ensure("stat/cpu/cpu", []string{"load1", "load5", "load15"}, cpuDescriptors)
	dict["load1"].Append(util.ParseFloat64(fields[0]))
	dict["load5"].Append(util.ParseFloat64(fields[1]))
	dict["load15"].Append(util.ParseFloat64(fields[2]))
	return nil
}

func (p *CPUProducer) Exit() error { return nil }
