package model

// Scope is the read-only view into a single subservice's own metric dict
// that a compiled rule evaluates against. It is implemented by the dict a
// node holds at its own store path — rules never see siblings or the raw
// store directly, only the attributes bound to the node they're attached
// to, resolved against the registry at load time.
type Scope interface {
	Buffer(name string) (*RingBuffer, bool)
}

// Expr is a compiled boolean rule expression. Implementations live in the
// rules package; model only needs the evaluation contract so that a
// Symptom can carry a compiled rule without the model package depending on
// the parser.
type Expr interface {
	Eval(s Scope) (bool, error)
}

// Symptom is one row of the symptom rule file bound to a node's type path:
// the ancestor owner-class chain with no instance names, e.g. "node/bm/cpu"
// or "node/vm/net/if" for the per-interface case. Binding by path (rather
// than bare owner class) lets the same owner class carry different rules
// in different tree positions, e.g. a bare-metal cpu's load-average rule
// doesn't also apply to a VM's cpu.
type Symptom struct {
	Name       string
	Path       string // e.g. "node/bm/cpu" — matched against a node's type path
	OwnerClass string // Path's final segment; the registry identifier scope a rule's identifiers resolve against
	Severity   Severity
	Rule       Expr
}

// Check evaluates the symptom's rule against scope. A rule that errors
// (e.g. an aggregate on an empty buffer) is treated as not firing, never as
// firing — symptoms must be positively demonstrated.
func (sym *Symptom) Check(s Scope) bool {
	ok, err := sym.Rule.Eval(s)
	if err != nil {
		return false
	}
	return ok
}

// FiredSymptom is one currently-firing symptom as reported in a node's
// snapshot view. ID is the stable hash of (name, bound node fullname),
// computed by the graph package at aggregation time.
type FiredSymptom struct {
	ID     uint64
	Name   string
	Weight int
	Since  int64 // unix seconds the symptom started continuously firing
}
