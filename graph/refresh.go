package graph

// RefreshMetrics updates every node's own metric dict from its bound
// raw-input scope, then updates vm/kb "active" status from the raw
// instance-level state attribute. Mirrors the dispatch-by-owner-class
// design of the original health engine's per-path update functions,
// generalized into one data-driven copy since the raw and assurance
// scopes here use matching attribute names by registry convention.
func (g *Graph) RefreshMetrics() {
	g.refreshNode(g.root)
}

func (g *Graph) refreshNode(id NodeID) {
	n := g.nodes[id]

	switch n.ownerClass {
	case "vm":
		g.refreshInstanceState(n, "state", "running")
	case "kb":
		g.refreshInstanceState(n, "status", "synced")
	case "bm":
		// pure grouping node: no own metrics to copy.
	default:
		g.copyRawToOwn(n)
	}

	if (n.ownerClass == "vm" || n.ownerClass == "kb") && !n.active {
		// Matches the original health engine: metrics stop refreshing for an
		// inactive instance, but its subtree (and last-known health) stays
		// in place until reconciliation actively removes it.
		return
	}
	for _, c := range n.children {
		g.refreshNode(c)
	}
}

// copyRawToOwn copies each registered metric's latest raw sample into the
// node's own ring buffer of the same name, creating the node's own scope on
// first use. A node with no rawPath, or whose raw scope hasn't been written
// by any producer yet, is silently skipped (MissingScope).
func (g *Graph) copyRawToOwn(n *Node) {
	if n.rawPath == "" {
		return
	}
	rawDict, ok := g.store.Get(n.rawPath)
	if !ok {
		return
	}

	names := g.reg.Names(n.ownerClass)
	descriptors := g.reg.Descriptors(n.ownerClass)
	ownDict := g.store.Ensure(n.path, names, descriptors)

	for _, name := range names {
		rb, ok := rawDict[name]
		if !ok || rb.IsEmpty() {
			continue
		}
		top, _ := rb.Top()
		ownDict[name].Append(top)
	}
}

// refreshInstanceState copies the instance's own metrics, then derives its
// active flag from the named raw attribute's latest string value.
func (g *Graph) refreshInstanceState(n *Node, attr, activeValue string) {
	g.copyRawToOwn(n)

	n.active = false
	rawDict, ok := g.store.Get(n.rawPath)
	if !ok {
		return
	}
	rb, ok := rawDict[attr]
	if !ok || rb.IsEmpty() {
		return
	}
	top, _ := rb.Top()
	s, _ := top.(string)
	n.active = s == activeValue
}

// Active reports whether a vm/kb node is currently Running/synced. Always
// true for owner classes with no notion of activity.
func (n *Node) Active() bool { return n.active }
