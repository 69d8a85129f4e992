// Package graph implements the subservice dependency graph: a tree of
// typed nodes (the root device, a baremetal subtree, and a reconciled set
// of VM/kernel-bypass-net subtrees), each owning a slice of the metric
// store, evaluating its bound symptoms, and aggregating a bottom-up health
// score exactly as spec.md §4.F/§4.G describe.
//
// Nodes are addressed by integer ID in a flat arena rather than linked by
// pointers, so the tree can be freely reshaped during reconciliation
// without manual cycle management (spec.md's Design Notes).
package graph

import (
	"github.com/ftahirops/dxagent/model"
)

// NodeID addresses a node within a Graph's arena. The zero value is the
// root, which is always allocated first at index 0, so NoNode is the only
// "absent" sentinel.
type NodeID int

// NoNode is the sentinel for "no such node" / "no parent".
const NoNode NodeID = -1

// Node is one subservice in the dependency tree.
type Node struct {
	id         NodeID
	ownerClass string // "node", "bm", "cpu", "mem", "disks", "sensors", "proc", "net", "if", "vm", "kb"
	name       string // instance name for list-type owner classes (vm/kb/if); "" otherwise
	label      string // attrs like hypervisor/framework name, used for json label
	path       string // this node's own scope path in the store (assurance scope, identity-qualified)
	typePath   string // ancestor owner-class chain with no identity keys, e.g. "node/vm/cpu" — what a rule's path column binds against
	rawPath    string // the raw-input scope path this node's refresh function reads from, if any
	ifScanPath string // net nodes only: raw-input prefix scanned to discover "if" children
	parent     NodeID
	children   []NodeID
	impacting  bool // whether this node's health impacts its parent's score
	active     bool // vm/kb only: whether currently Running/synced

	healthScore int
	symptoms    []model.FiredSymptom
	firingSince map[string]int64
}

// ID returns the node's arena index.
func (n *Node) ID() NodeID { return n.id }

// OwnerClass returns the node's subservice type, used both for rule
// binding and for the refresh dispatch table.
func (n *Node) OwnerClass() string { return n.ownerClass }

// Name returns the node's instance name (empty for singleton owner
// classes).
func (n *Node) Name() string { return n.name }

// Path returns the node's own scope path in the store.
func (n *Node) Path() string { return n.path }

// HealthScore returns the node's last-computed aggregate health score,
// 0-100.
func (n *Node) HealthScore() int { return n.healthScore }

// Symptoms returns the node's currently-firing symptoms.
func (n *Node) Symptoms() []model.FiredSymptom { return n.symptoms }

// fullID builds the stable external identifier used in snapshot views:
// the slash-joined owner-class/name path from the root, e.g.
// "node/bm/net/if/eth0" or "node/vm/myvm/cpu".
func (n *Node) fullID(g *Graph) string {
	if n.parent == NoNode {
		return n.ownerClass
	}
	parent := g.nodes[n.parent]
	base := parent.fullID(g)
	if n.name != "" {
		return base + "/" + n.ownerClass + "/" + n.name
	}
	return base + "/" + n.ownerClass
}
