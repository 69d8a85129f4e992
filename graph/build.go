package graph

import (
	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/registry"
	"github.com/ftahirops/dxagent/rules"
)

// Graph is the full subservice dependency tree plus the store/registry/
// ruleset it was built against. It owns node allocation; callers never
// construct a Node directly.
type Graph struct {
	nodes []*Node
	root  NodeID

	store *model.Store
	reg   *registry.Registry
	rules *rules.Ruleset

	changed int64 // unix seconds of the last topology change (vm/kb add or remove)
}

// New builds the static part of the tree: the root device node and its
// baremetal subtree (cpu, sensors, disks, mem, proc, net). VM and
// kernel-bypass-net subtrees are added later by Reconcile.
func New(store *model.Store, reg *registry.Registry, rs *rules.Ruleset) *Graph {
	g := &Graph{store: store, reg: reg, rules: rs}

	root := g.alloc("node", "", NoNode, true)
	g.nodes[root].rawPath = "sysinfo"
	g.root = root

	bm := g.alloc("bm", "", root, true)
	g.link(root, bm)

	rawByClass := map[string]string{
		"cpu":     "stat/cpu/cpu",
		"sensors": "sensors",
		"disks":   "diskstats",
		"mem":     "meminfo",
		"proc":    "stats_global",
	}
	for _, oc := range []string{"cpu", "sensors", "disks", "mem", "proc"} {
		// sensors is informational: a hot/critical temperature reading is
		// worth surfacing but shouldn't by itself drag down the baremetal
		// (or node) score the way a cpu/mem/disk/proc problem does.
		impacting := oc != "sensors"
		child := g.alloc(oc, "", bm, impacting)
		g.nodes[child].rawPath = rawByClass[oc]
		g.link(bm, child)
	}
	net := g.alloc("net", "", bm, true)
	netNode := g.nodes[net]
	netNode.rawPath = "snmp"
	netNode.ifScanPath = "net/dev"
	g.link(bm, net)

	g.finalizePaths()
	return g
}

func (g *Graph) alloc(ownerClass, name string, parent NodeID, impacting bool) NodeID {
	id := NodeID(len(g.nodes))
	typePath := ownerClass
	if parent != NoNode {
		typePath = g.nodes[parent].typePath + "/" + ownerClass
	}
	n := &Node{
		id:          id,
		ownerClass:  ownerClass,
		name:        name,
		parent:      parent,
		typePath:    typePath,
		impacting:   impacting,
		active:      true,
		firingSince: make(map[string]int64),
	}
	g.nodes = append(g.nodes, n)
	return id
}

func (g *Graph) link(parent, child NodeID) {
	g.nodes[parent].children = append(g.nodes[parent].children, child)
}

// Root returns the graph's root node ID.
func (g *Graph) Root() NodeID { return g.root }

// Node returns the node for id.
func (g *Graph) Node(id NodeID) *Node { return g.nodes[id] }

// Children returns id's direct children.
func (g *Graph) Children(id NodeID) []NodeID { return g.nodes[id].children }

// finalizePaths (re)derives every node's store path from its position in
// the tree. Called after any topology change.
func (g *Graph) finalizePaths() {
	var walk func(id NodeID, prefix string)
	walk = func(id NodeID, prefix string) {
		n := g.nodes[id]
		var path string
		if n.name != "" {
			path = prefix + "/" + n.ownerClass + "/" + n.name
		} else {
			path = prefix + "/" + n.ownerClass
		}
		n.path = path
		for _, c := range n.children {
			walk(c, path)
		}
	}
	root := g.nodes[g.root]
	root.path = root.ownerClass
	for _, c := range root.children {
		walk(c, root.path)
	}
}

// findChild returns the child of parent with the given owner class and
// name, if any.
func (g *Graph) findChild(parent NodeID, ownerClass, name string) (NodeID, bool) {
	for _, c := range g.nodes[parent].children {
		n := g.nodes[c]
		if n.ownerClass == ownerClass && n.name == name {
			return c, true
		}
	}
	return NoNode, false
}

// addVM instantiates a VM subtree (cpu, mem, net, proc) under the root.
func (g *Graph) addVM(name, hypervisor string, now int64) NodeID {
	vm := g.alloc("vm", name, g.root, true)
	g.nodes[vm].label = hypervisor
	g.nodes[vm].rawPath = "virtualbox/vms/" + name
	g.link(g.root, vm)

	base := "virtualbox/vms/" + name
	rawByClass := map[string]string{"cpu": base + "/cpu", "mem": base + "/mem", "proc": base + "/proc"}
	for _, oc := range []string{"cpu", "mem", "proc"} {
		child := g.alloc(oc, "", vm, true)
		g.nodes[child].rawPath = rawByClass[oc]
		g.link(vm, child)
	}
	net := g.alloc("net", "", vm, true)
	g.nodes[net].rawPath = base + "/net"
	g.nodes[net].ifScanPath = base + "/net/if"
	g.link(vm, net)
	g.changed = now
	return vm
}

// addKBNet instantiates a kernel-bypass-net subtree (proc, mem, net) under
// the root.
func (g *Graph) addKBNet(name, framework string, now int64) NodeID {
	kb := g.alloc("kb", name, g.root, true)
	g.nodes[kb].label = framework
	g.nodes[kb].rawPath = "vpp/gnmi/" + name
	g.link(g.root, kb)

	base := "vpp/gnmi/" + name
	rawByClass := map[string]string{"proc": base + "/proc", "mem": base + "/mem"}
	for _, oc := range []string{"proc", "mem"} {
		child := g.alloc(oc, "", kb, true)
		g.nodes[child].rawPath = rawByClass[oc]
		g.link(kb, child)
	}
	net := g.alloc("net", "", kb, true)
	g.nodes[net].rawPath = base + "/net"
	g.nodes[net].ifScanPath = base + "/net/if"
	g.link(kb, net)
	g.changed = now
	return kb
}

// removeChild detaches a direct child of parent (used to remove a
// reconciled-away VM/KBNet instance) and drops its store subtree.
func (g *Graph) removeChild(parent, child NodeID, now int64) {
	kids := g.nodes[parent].children
	for i, c := range kids {
		if c == child {
			g.nodes[parent].children = append(kids[:i], kids[i+1:]...)
			break
		}
	}
	g.store.DropSubtree(g.nodes[child].path)
	g.changed = now
}

// Reconcile adds/removes vm and kbnet subtrees to match the observed sets,
// and adds/removes "if" interface children under every net node to match
// each scope's observed interface set. now is a unix-seconds timestamp
// supplied by the caller (the graph package performs no wall-clock reads).
func (g *Graph) Reconcile(observedVMs map[string]string, observedKBs map[string]string, now int64) {
	g.reconcileInstances("vm", observedVMs, now)
	g.reconcileInstances("kb", observedKBs, now)
	g.finalizePaths()

	// Interfaces are reconciled per net node against that node's own raw
	// scope, discovered via the store's KeysUnder on the node's ifScanPath.
	for _, n := range g.nodes {
		if n.ownerClass != "net" || n.ifScanPath == "" {
			continue
		}
		g.reconcileInterfaces(n.id, now)
	}
	g.finalizePaths()
}

func (g *Graph) reconcileInstances(ownerClass string, observed map[string]string, now int64) {
	existing := make(map[string]NodeID)
	for _, c := range g.nodes[g.root].children {
		n := g.nodes[c]
		if n.ownerClass == ownerClass {
			existing[n.name] = c
		}
	}
	for name, label := range observed {
		if _, ok := existing[name]; ok {
			continue
		}
		if ownerClass == "vm" {
			g.addVM(name, label, now)
		} else {
			g.addKBNet(name, label, now)
		}
	}
	for name, id := range existing {
		if _, ok := observed[name]; !ok {
			g.removeChild(g.root, id, now)
		}
	}
}

// reconcileInterfaces adds/removes "if" children of a net node to match
// the interface names present under that node's raw scope.
func (g *Graph) reconcileInterfaces(netID NodeID, now int64) {
	n := g.nodes[netID]
	observed := g.store.KeysUnder(n.ifScanPath)
	want := make(map[string]struct{}, len(observed))
	for _, name := range observed {
		want[name] = struct{}{}
	}

	existing := make(map[string]NodeID)
	for _, c := range n.children {
		child := g.nodes[c]
		if child.ownerClass == "if" {
			existing[child.name] = c
		}
	}
	for name := range want {
		if _, ok := existing[name]; ok {
			continue
		}
		iface := g.alloc("if", name, netID, true)
		g.nodes[iface].rawPath = n.ifScanPath + "/" + name
		g.link(netID, iface)
	}
	for name, id := range existing {
		if _, ok := want[name]; !ok {
			g.removeChild(netID, id, now)
		}
	}
}

// SetRawPath assigns the raw-input scope path a node's refresh function
// reads from. It does not change the prefix Reconcile scans for a net
// node's interfaces (ifScanPath).
func (g *Graph) SetRawPath(id NodeID, rawPath string) {
	g.nodes[id].rawPath = rawPath
}

// FindNetNode returns the net node under the root baremetal subtree, a VM,
// or a KBNet instance, by the parent instance name ("" for baremetal).
func (g *Graph) FindNetNode(instanceOwnerClass, instanceName string) (NodeID, bool) {
	var parent NodeID
	if instanceOwnerClass == "bm" {
		bm, ok := g.findChild(g.root, "bm", "")
		if !ok {
			return NoNode, false
		}
		parent = bm
	} else {
		inst, ok := g.findChild(g.root, instanceOwnerClass, instanceName)
		if !ok {
			return NoNode, false
		}
		parent = inst
	}
	return g.findChild(parent, "net", "")
}
