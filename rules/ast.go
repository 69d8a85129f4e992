package rules

import (
	"fmt"
	"strings"

	"github.com/ftahirops/dxagent/model"
)

// kind tags a runtime Value produced by evaluating a term.
type kind int

const (
	kindNum kind = iota
	kindStr
	kindBool
)

// value is the small tagged union rule terms evaluate to.
type value struct {
	k kind
	n float64
	s string
	b bool
}

func (v value) truthy() bool {
	switch v.k {
	case kindBool:
		return v.b
	case kindNum:
		return v.n != 0
	case kindStr:
		return v.s != ""
	}
	return false
}

// compareOp is a comparison operator in a cmp production.
type compareOp int

const (
	opLt compareOp = iota
	opLe
	opGt
	opGe
	opEq
	opNe
	opIn
)

// node is the common interface for every compiled AST node. It satisfies
// model.Expr (via exprNode below) and also knows how to report the
// identifiers it references, for load-time whitelisting.
type node interface {
	eval(s model.Scope) (value, error)
	idents(out map[string]struct{})
}

// exprNode adapts a boolean-valued node to model.Expr.
type exprNode struct {
	n node
}

func (e exprNode) Eval(s model.Scope) (bool, error) {
	v, err := e.n.eval(s)
	if err != nil {
		return false, err
	}
	return v.truthy(), nil
}

// orNode implements `and_expr ('or' and_expr)*`.
type orNode struct{ left, right node }

func (n *orNode) eval(s model.Scope) (value, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return value{}, err
	}
	if l.truthy() {
		return value{k: kindBool, b: true}, nil
	}
	r, err := n.right.eval(s)
	if err != nil {
		return value{}, err
	}
	return value{k: kindBool, b: r.truthy()}, nil
}

func (n *orNode) idents(out map[string]struct{}) {
	n.left.idents(out)
	n.right.idents(out)
}

// andNode implements `not_expr ('and' not_expr)*`.
type andNode struct{ left, right node }

func (n *andNode) eval(s model.Scope) (value, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return value{}, err
	}
	if !l.truthy() {
		return value{k: kindBool, b: false}, nil
	}
	r, err := n.right.eval(s)
	if err != nil {
		return value{}, err
	}
	return value{k: kindBool, b: r.truthy()}, nil
}

func (n *andNode) idents(out map[string]struct{}) {
	n.left.idents(out)
	n.right.idents(out)
}

// notNode implements `'not' not_expr`.
type notNode struct{ x node }

func (n *notNode) eval(s model.Scope) (value, error) {
	v, err := n.x.eval(s)
	if err != nil {
		return value{}, err
	}
	return value{k: kindBool, b: !v.truthy()}, nil
}

func (n *notNode) idents(out map[string]struct{}) {
	n.x.idents(out)
}

// compareNode implements `term (cmpop term)?`.
type compareNode struct {
	op          compareOp
	left, right node
}

func (n *compareNode) eval(s model.Scope) (value, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return value{}, err
	}
	r, err := n.right.eval(s)
	if err != nil {
		return value{}, err
	}
	b, err := compare(n.op, l, r)
	if err != nil {
		return value{}, err
	}
	return value{k: kindBool, b: b}, nil
}

func (n *compareNode) idents(out map[string]struct{}) {
	n.left.idents(out)
	n.right.idents(out)
}

func compare(op compareOp, l, r value) (bool, error) {
	if op == opIn {
		if l.k != kindStr || r.k != kindStr {
			return false, fmt.Errorf("'in' requires string operands")
		}
		return strings.Contains(r.s, l.s), nil
	}
	if l.k == kindStr || r.k == kindStr {
		ls, rs := asString(l), asString(r)
		switch op {
		case opEq:
			return ls == rs, nil
		case opNe:
			return ls != rs, nil
		default:
			return false, fmt.Errorf("ordering comparison on string operand")
		}
	}
	ln, rn := asNumber(l), asNumber(r)
	switch op {
	case opLt:
		return ln < rn, nil
	case opLe:
		return ln <= rn, nil
	case opGt:
		return ln > rn, nil
	case opGe:
		return ln >= rn, nil
	case opEq:
		return ln == rn, nil
	case opNe:
		return ln != rn, nil
	}
	return false, fmt.Errorf("unknown comparison operator")
}

func asString(v value) string {
	switch v.k {
	case kindStr:
		return v.s
	case kindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v.n)
	}
}

func asNumber(v value) float64 {
	switch v.k {
	case kindNum:
		return v.n
	case kindBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// literalNode is a NUMBER or STRING literal term.
type literalNode struct{ v value }

func (n *literalNode) eval(model.Scope) (value, error) { return n.v, nil }
func (n *literalNode) idents(map[string]struct{})      {}

// identNode is `IDENT ('.' IDENT)* call?`: a dotted metric name with an
// optional trailing aggregate call (.mean(), .min(), .max(), .sum(),
// .dynamicity(), .top(), .severity()). No call means top().
type identNode struct {
	name   string
	method string
}

func (n *identNode) idents(out map[string]struct{}) {
	out[n.name] = struct{}{}
}

func (n *identNode) eval(s model.Scope) (value, error) {
	rb, ok := s.Buffer(n.name)
	if !ok || rb.IsEmpty() {
		return value{}, fmt.Errorf("metric %q unavailable", n.name)
	}

	switch n.method {
	case "", "top":
		top, _ := rb.Top()
		return valueFromAny(top), nil
	case "severity":
		return value{k: kindStr, s: rb.TopSeverity().String()}, nil
	case "min":
		f, ok := rb.Min()
		if !ok {
			return value{}, fmt.Errorf("metric %q: min unavailable", n.name)
		}
		return value{k: kindNum, n: f}, nil
	case "max":
		f, ok := rb.Max()
		if !ok {
			return value{}, fmt.Errorf("metric %q: max unavailable", n.name)
		}
		return value{k: kindNum, n: f}, nil
	case "mean":
		f, ok := rb.Mean()
		if !ok {
			return value{}, fmt.Errorf("metric %q: mean unavailable", n.name)
		}
		return value{k: kindNum, n: f}, nil
	case "sum":
		f, ok := rb.Sum()
		if !ok {
			return value{}, fmt.Errorf("metric %q: sum unavailable", n.name)
		}
		return value{k: kindNum, n: f}, nil
	case "dynamicity":
		f, ok := rb.Dynamicity()
		if !ok {
			return value{}, fmt.Errorf("metric %q: dynamicity unavailable", n.name)
		}
		return value{k: kindNum, n: f}, nil
	}
	return value{}, fmt.Errorf("unknown method %q on metric %q", n.method, n.name)
}

func valueFromAny(x interface{}) value {
	switch v := x.(type) {
	case int64:
		return value{k: kindNum, n: float64(v)}
	case float64:
		return value{k: kindNum, n: v}
	case string:
		return value{k: kindStr, s: v}
	case bool:
		return value{k: kindBool, b: v}
	default:
		return value{k: kindStr, s: fmt.Sprintf("%v", v)}
	}
}
