package producer

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/util"
)

var diskCounterNames = []string{
	"reads_completed", "writes_completed", "sectors_read", "sectors_written",
	"read_time_ms", "write_time_ms", "io_time_ms", "weighted_io_time_ms",
}

var diskDescriptors = diskCounterDescriptors()

func diskCounterDescriptors() map[string]model.Metric {
	d := make(map[string]model.Metric, len(diskCounterNames))
	for _, name := range diskCounterNames {
		d[name] = model.Metric{Name: name, OwnerClass: "disks", Type: model.TypeInt, IsCounter: true}
	}
	return d
}

// DiskProducer reads /proc/diskstats (per whole-device counters, under
// diskstats/<dev>) and the root filesystem's free space (under the
// diskstats aggregate scope, attribute free_pct).
type DiskProducer struct{}

func (p *DiskProducer) Name() string { return "disk" }

var swapDescriptors = map[string]model.Metric{
	"used_kb": {Name: "used_kb", OwnerClass: "disks", Type: model.TypeInt, Unit: "kb"},
}

func (p *DiskProducer) Collect(store *model.Store) error {
	if err := p.collectDiskstats(store); err != nil {
		return err
	}
	p.collectFreeSpace(store)
	p.collectSwaps(store)
	return nil
}

// collectSwaps reads /proc/swaps, one scope per configured swap device.
func (p *DiskProducer) collectSwaps(store *model.Store) {
	lines, err := util.ReadFileLines("/proc/swaps")
	if err != nil {
		return
	}
	for i, line := range lines {
		if i == 0 {
			continue // header: Filename Type Size Used Priority
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		dict := store.Ensure("swaps/"+fields[0], []string{"used_kb"}, swapDescriptors)
		dict["used_kb"].Append(util.ParseUint64(fields[3]))
	}
}

func (p *DiskProducer) collectDiskstats(store *model.Store) error {
	lines, err := util.ReadFileLines("/proc/diskstats")
	if err != nil {
		return fmt.Errorf("read /proc/diskstats: %w", err)
	}
	var totalReads, totalWrites, totalIOTime uint64
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 14 {
			continue
		}
		name := fields[2]
		if !isWholeDisk(name) {
			continue
		}
		dict := store.Ensure("diskstats/"+name, diskCounterNames, diskDescriptors)
		dict["reads_completed"].Append(util.ParseUint64(fields[3]))
		dict["writes_completed"].Append(util.ParseUint64(fields[7]))
		dict["sectors_read"].Append(util.ParseUint64(fields[5]))
		dict["sectors_written"].Append(util.ParseUint64(fields[9]))
		dict["read_time_ms"].Append(util.ParseUint64(fields[6]))
		dict["write_time_ms"].Append(util.ParseUint64(fields[10]))
		dict["io_time_ms"].Append(util.ParseUint64(fields[12]))
		dict["weighted_io_time_ms"].Append(util.ParseUint64(fields[13]))

		totalReads += util.ParseUint64(fields[3])
		totalWrites += util.ParseUint64(fields[7])
		totalIOTime += util.ParseUint64(fields[12])
	}

	agg := store.Ensure("diskstats", []string{"reads_completed", "writes_completed", "io_time_ms"}, diskDescriptors)
	agg["reads_completed"].Append(totalReads)
	agg["writes_completed"].Append(totalWrites)
	agg["io_time_ms"].Append(totalIOTime)
	return nil
}

func (p *DiskProducer) collectFreeSpace(store *model.Store) {
	var st syscall.Statfs_t
	if err := syscall.Statfs("/", &st); err != nil {
		return
	}
	total := st.Blocks * uint64(st.Bsize)
	if total == 0 {
		return
	}
	free := st.Bavail * uint64(st.Bsize)
	freePct := float64(free) / float64(total) * 100
	dict := store.Ensure("diskstats", []string{"free_pct"}, map[string]model.Metric{
		"free_pct": {Name: "free_pct", OwnerClass: "disks", Type: model.TypeFloat, Unit: "pct"},
	})
	dict["free_pct"].Append(freePct)
}

// isWholeDisk returns true if the name looks like a whole disk device (not
// a partition).
func isWholeDisk(name string) bool {
	if strings.HasPrefix(name, "loop") {
		return false
	}
	if strings.HasPrefix(name, "nvme") {
		return !strings.Contains(name[4:], "p")
	}
	for _, prefix := range []string{"sd", "vd", "xvd", "hd"} {
		if strings.HasPrefix(name, prefix) {
			suffix := name[len(prefix):]
			return len(suffix) == 1 && suffix[0] >= 'a' && suffix[0] <= 'z'
		}
	}
	return strings.HasPrefix(name, "dm-")
}

func (p *DiskProducer) Exit() error { return nil }
