package model

// ValueType is the declared type of a metric's samples.
type ValueType int

const (
	TypeInt ValueType = iota
	TypeFloat
	TypeString
	TypeBool
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "str"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ParseValueType parses a descriptor "type" column value.
func ParseValueType(s string) (ValueType, bool) {
	switch s {
	case "int":
		return TypeInt, true
	case "float":
		return TypeFloat, true
	case "str":
		return TypeString, true
	case "bool":
		return TypeBool, true
	default:
		return TypeInt, false
	}
}

// Thresholds is the optional per-metric (warn, crit) pair used to assign a
// sample's top_severity(). Either bound may be disabled (Set == false),
// meaning the buffer never escalates past green from value alone.
type Thresholds struct {
	Warn    float64
	WarnSet bool
	Crit    float64
	CritSet bool
}

// Severity classifies a numeric sample against the configured thresholds.
// Escalation is monotonic: at or above Crit is Red, at or above Warn is
// Orange, otherwise Green.
func (t Thresholds) Severity(v float64) Severity {
	if t.CritSet && v >= t.Crit {
		return Red
	}
	if t.WarnSet && v >= t.Warn {
		return Orange
	}
	return Green
}

// Metric is a single row of the metric descriptor: which subservice owns it,
// what shape its samples take, and how a ring buffer should treat them.
type Metric struct {
	Name       string
	OwnerClass string // subservice type string: cpu, mem, if, ...
	Type       ValueType
	Unit       string
	IsList     bool
	IsCounter  bool
	Thresholds Thresholds
}
