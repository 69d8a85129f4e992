package producer

import (
	"net"
	"os"
	"strings"
	"sync"

	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/util"
)

var sysinfoDescriptors = map[string]model.Metric{
	"hostname":       {Name: "hostname", OwnerClass: "node", Type: model.TypeString},
	"virtualization": {Name: "virtualization", OwnerClass: "node", Type: model.TypeString},
	"primary_ip":     {Name: "primary_ip", OwnerClass: "node", Type: model.TypeString},
}

// SysInfoProducer collects hostname, a primary non-loopback IP, and a
// virtualization-type guess once, then republishes the cached values every
// tick under the "sysinfo" raw scope.
type SysInfoProducer struct {
	once     sync.Once
	hostname string
	ip       string
	virt     string
}

func (p *SysInfoProducer) Name() string { return "sysinfo" }

func (p *SysInfoProducer) Collect(store *model.Store) error {
	p.once.Do(func() {
		p.hostname, _ = os.Hostname()
		p.ip = primaryIP()
		p.virt = detectVirtualization()
	})
	dict := store.Ensure("sysinfo", []string{"hostname", "virtualization", "primary_ip"}, sysinfoDescriptors)
	dict["hostname"].Append(p.hostname)
	dict["virtualization"].Append(p.virt)
	dict["primary_ip"].Append(p.ip)
	return nil
}

func primaryIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		name := strings.ToLower(iface.Name)
		if strings.HasPrefix(name, "docker") || strings.HasPrefix(name, "veth") ||
			strings.HasPrefix(name, "br-") || strings.HasPrefix(name, "cni") {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			return ip.String()
		}
	}
	return ""
}

func detectVirtualization() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "container-docker"
	}
	cgroup, _ := util.ReadFileString("/proc/1/cgroup")
	if strings.Contains(cgroup, "/docker/") || strings.Contains(cgroup, "/docker-") {
		return "container-docker"
	}
	if strings.Contains(cgroup, "/lxc/") {
		return "container-lxc"
	}
	vendor, _ := util.ReadFileString("/sys/class/dmi/id/sys_vendor")
	switch {
	case strings.Contains(strings.ToLower(vendor), "qemu"):
		return "vm-kvm"
	case strings.Contains(strings.ToLower(vendor), "innotek"):
		return "vm-virtualbox"
	case strings.Contains(strings.ToLower(vendor), "vmware"):
		return "vm-vmware"
	}
	cpuinfo, _ := util.ReadFileString("/proc/cpuinfo")
	if strings.Contains(cpuinfo, "hypervisor") {
		return "vm-unknown"
	}
	return "bare-metal"
}

func (p *SysInfoProducer) Exit() error { return nil }
