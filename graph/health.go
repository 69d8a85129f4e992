package graph

import (
	"hash/fnv"

	"github.com/ftahirops/dxagent/model"
)

// storeScope adapts a node's own DictOfRingBuffers to model.Scope, the
// read-only view a compiled rule evaluates against.
type storeScope struct {
	dict model.DictOfRingBuffers
}

func (s storeScope) Buffer(name string) (*model.RingBuffer, bool) {
	if s.dict == nil {
		return nil, false
	}
	rb, ok := s.dict[name]
	return rb, ok
}

// UpdateHealth recomputes every node's health score and firing-symptom
// list, bottom-up, post-order: a node's score starts at 100, is reduced by
// each impacting child's malus (100-child.score, saturating at 0), then by
// its own firing symptoms' weights (saturating at 0). now is a unix-seconds
// timestamp supplied by the caller, used only to stamp newly-firing
// symptoms' Since field.
func (g *Graph) UpdateHealth(now int64) {
	g.updateNode(g.root, now)
}

func (g *Graph) updateNode(id NodeID, now int64) {
	n := g.nodes[id]
	for _, c := range n.children {
		g.updateNode(c, now)
	}

	score := 100
	for _, c := range n.children {
		child := g.nodes[c]
		if !child.impacting {
			continue
		}
		score -= 100 - child.healthScore
		if score < 0 {
			score = 0
		}
	}

	dict, _ := g.store.Get(n.path)
	scope := storeScope{dict: dict}

	var fired []model.FiredSymptom
	seen := make(map[string]struct{})
	fullID := n.fullID(g)
	for _, sym := range g.rules.ForPath(n.typePath) {
		if !sym.Check(scope) {
			delete(n.firingSince, sym.Name)
			continue
		}
		seen[sym.Name] = struct{}{}
		since, ok := n.firingSince[sym.Name]
		if !ok {
			since = now
			n.firingSince[sym.Name] = now
		}
		fired = append(fired, model.FiredSymptom{
			ID:     symptomID(sym.Name, fullID),
			Name:   sym.Name,
			Weight: sym.Severity.Weight(),
			Since:  since,
		})
		score -= sym.Severity.Weight()
		if score < 0 {
			score = 0
		}
	}
	for name := range n.firingSince {
		if _, ok := seen[name]; !ok {
			delete(n.firingSince, name)
		}
	}

	n.healthScore = score
	n.symptoms = fired
}

// symptomID is the stable published identity of a firing symptom: the hash
// of its name and its bound node's fullname.
func symptomID(name, fullID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(fullID))
	return h.Sum64()
}

// Snapshot walks the tree in parent-before-child order and produces the
// read-only per-tick publish record a Consumer receives.
func (g *Graph) Snapshot(tick int64) model.AssuranceSnapshot {
	var nodes []model.NodeView
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := g.nodes[id]
		view := model.NodeView{
			ID:          n.fullID(g),
			Label:       n.label,
			OwnerClass:  n.ownerClass,
			HealthScore: n.healthScore,
			LastChange:  g.changed,
			Symptoms:    append([]model.FiredSymptom(nil), n.symptoms...),
			Parameters:  model.Parameters{Path: n.typePath, Name: n.name},
		}
		for _, c := range n.children {
			child := g.nodes[c]
			view.Dependencies = append(view.Dependencies, model.DependencyRef{
				ID:        child.fullID(g),
				Impacting: child.impacting,
			})
		}
		nodes = append(nodes, view)
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(g.root)
	return model.AssuranceSnapshot{Tick: tick, Nodes: nodes}
}
