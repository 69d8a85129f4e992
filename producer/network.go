package producer

import (
	"fmt"
	"os"
	"strings"

	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/util"
)

var netDevCounterNames = []string{
	"rx_bytes", "rx_packets", "rx_errors", "rx_drops",
	"tx_bytes", "tx_packets", "tx_errors", "tx_drops",
}

var netDevDescriptors = netDevCounterDescriptors()

func netDevCounterDescriptors() map[string]model.Metric {
	d := make(map[string]model.Metric, len(netDevCounterNames)+1)
	for _, name := range netDevCounterNames {
		d[name] = model.Metric{Name: name, OwnerClass: "if", Type: model.TypeInt, IsCounter: true}
	}
	d["operstate"] = model.Metric{Name: "operstate", OwnerClass: "if", Type: model.TypeString}
	return d
}

var snmpNames = []string{
	"tcp_retrans_segs", "tcp_in_errs", "tcp_curr_estab", "tcp_attempt_fails",
	"udp_in_errors", "udp_no_ports",
}

var snmpDescriptors = snmpCounterDescriptors()

func snmpCounterDescriptors() map[string]model.Metric {
	d := make(map[string]model.Metric, len(snmpNames))
	for _, name := range snmpNames {
		d[name] = model.Metric{Name: name, OwnerClass: "net", Type: model.TypeInt, IsCounter: true}
	}
	return d
}

// NetworkProducer reads /proc/net/dev (per interface, under net/dev/<if>),
// /sys/class/net/<if>/operstate, and /proc/net/snmp (aggregate protocol
// counters, under snmp).
type NetworkProducer struct{}

func (p *NetworkProducer) Name() string { return "network" }

var arpDescriptors = map[string]model.Metric{
	"flags": {Name: "flags", OwnerClass: "net", Type: model.TypeString},
}

func (p *NetworkProducer) Collect(store *model.Store) error {
	if err := p.collectNetDev(store); err != nil {
		return err
	}
	p.collectSNMP(store)
	p.collectARP(store)
	return nil
}

// collectARP reads /proc/net/arp, one scope per resolved neighbor IP.
func (p *NetworkProducer) collectARP(store *model.Store) {
	lines, err := util.ReadFileLines("/proc/net/arp")
	if err != nil {
		return
	}
	for i, line := range lines {
		if i == 0 {
			continue // header: IP address HW type Flags HW address Mask Device
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		dict := store.Ensure("net/arp/"+fields[0], []string{"flags"}, arpDescriptors)
		dict["flags"].Append(fields[2])
	}
}

func (p *NetworkProducer) collectNetDev(store *model.Store) error {
	lines, err := util.ReadFileLines("/proc/net/dev")
	if err != nil {
		return fmt.Errorf("read /proc/net/dev: %w", err)
	}
	for _, line := range lines {
		if strings.Contains(line, "|") || strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if name == "lo" {
			continue
		}
		fields := strings.Fields(parts[1])
		if len(fields) < 16 {
			continue
		}
		dict := store.Ensure("net/dev/"+name, netDevCounterNames, netDevDescriptors)
		dict["rx_bytes"].Append(util.ParseUint64(fields[0]))
		dict["rx_packets"].Append(util.ParseUint64(fields[1]))
		dict["rx_errors"].Append(util.ParseUint64(fields[2]))
		dict["rx_drops"].Append(util.ParseUint64(fields[3]))
		dict["tx_bytes"].Append(util.ParseUint64(fields[8]))
		dict["tx_packets"].Append(util.ParseUint64(fields[9]))
		dict["tx_errors"].Append(util.ParseUint64(fields[10]))
		dict["tx_drops"].Append(util.ParseUint64(fields[11]))

		operstate := readSysFile("/sys/class/net/" + name + "/operstate")
		if operstate == "" {
			operstate = "unknown"
		}
		store.Ensure("net/dev/"+name, []string{"operstate"}, netDevDescriptors)["operstate"].Append(operstate)
	}
	return nil
}

func readSysFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *NetworkProducer) collectSNMP(store *model.Store) {
	lines, err := util.ReadFileLines("/proc/net/snmp")
	if err != nil {
		return
	}
	var tcpRetrans, tcpInErrs, tcpCurrEstab, tcpAttemptFails, udpInErrors, udpNoPorts uint64
	for i := 0; i+1 < len(lines); i += 2 {
		headers := strings.Fields(lines[i])
		values := strings.Fields(lines[i+1])
		if len(headers) != len(values) || len(headers) < 2 {
			continue
		}
		switch headers[0] {
		case "Tcp:":
			for j, h := range headers {
				switch h {
				case "RetransSegs":
					tcpRetrans = util.ParseUint64(values[j])
				case "InErrs":
					tcpInErrs = util.ParseUint64(values[j])
				case "CurrEstab":
					tcpCurrEstab = util.ParseUint64(values[j])
				case "AttemptFails":
					tcpAttemptFails = util.ParseUint64(values[j])
				}
			}
		case "Udp:":
			for j, h := range headers {
				switch h {
				case "InErrors":
					udpInErrors = util.ParseUint64(values[j])
				case "NoPorts":
					udpNoPorts = util.ParseUint64(values[j])
				}
			}
		}
	}
	dict := store.Ensure("snmp", snmpNames, snmpDescriptors)
	dict["tcp_retrans_segs"].Append(tcpRetrans)
	dict["tcp_in_errs"].Append(tcpInErrs)
	dict["tcp_curr_estab"].Append(tcpCurrEstab)
	dict["tcp_attempt_fails"].Append(tcpAttemptFails)
	dict["udp_in_errors"].Append(udpInErrors)
	dict["udp_no_ports"].Append(udpNoPorts)
}

func (p *NetworkProducer) Exit() error { return nil }
