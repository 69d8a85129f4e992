// Package registry loads the metric descriptor file (metrics.csv) that
// names every metric a subservice owner class may carry, its declared
// type, unit, list-ness and counter-ness, and optional warn/crit
// escalation thresholds.
package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ftahirops/dxagent/model"
)

// LoadError wraps a failure to open or read the descriptor file itself —
// spec.md's Fatal condition, since without a registry nothing can be typed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("registry: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ParseError describes one malformed row. The loader accumulates these and
// skips the row rather than aborting the whole load — one bad line in
// metrics.csv should not take the agent down.
type ParseError struct {
	Path string
	Row  int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("registry: %s:%d: %v", e.Path, e.Row, e.Err)
}

// Registry is the loaded, queryable metric descriptor table.
type Registry struct {
	byOwnerClass map[string][]string
	descriptors  map[string]map[string]model.Metric // ownerClass -> name -> Metric
	byName       map[string]model.Metric
}

// Load reads a metrics.csv file. Header columns: name,owner_class,type,
// unit,is_list,is_counter,warn,crit. warn/crit may be empty. Rows that fail
// to parse are skipped and returned as ParseErrors; Load itself only fails
// (wrapped as *LoadError) if the file cannot be opened or its header is
// unreadable.
func Load(path string) (*Registry, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{&LoadError{Path: path, Err: err}}
	}
	defer f.Close()
	return load(path, f)
}

func load(path string, r io.Reader) (*Registry, []error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, []error{&LoadError{Path: path, Err: err}}
	}
	col := columnIndex(header)

	reg := &Registry{
		byOwnerClass: make(map[string][]string),
		descriptors:  make(map[string]map[string]model.Metric),
		byName:       make(map[string]model.Metric),
	}

	var errs []error
	rowNum := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			errs = append(errs, &ParseError{Path: path, Row: rowNum, Err: err})
			continue
		}
		m, err := parseRow(rec, col)
		if err != nil {
			errs = append(errs, &ParseError{Path: path, Row: rowNum, Err: err})
			continue
		}
		reg.add(m)
	}
	return reg, errs
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.ToLower(h))] = i
	}
	return idx
}

func field(rec []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseRow(rec []string, col map[string]int) (model.Metric, error) {
	name := field(rec, col, "name")
	if name == "" {
		return model.Metric{}, fmt.Errorf("missing name")
	}
	ownerClass := field(rec, col, "owner_class")
	if ownerClass == "" {
		return model.Metric{}, fmt.Errorf("metric %q: missing owner_class", name)
	}
	vtype, ok := model.ParseValueType(field(rec, col, "type"))
	if !ok {
		return model.Metric{}, fmt.Errorf("metric %q: bad type %q", name, field(rec, col, "type"))
	}
	isList := parseBool(field(rec, col, "is_list"))
	isCounter := parseBool(field(rec, col, "is_counter"))

	var th model.Thresholds
	if s := field(rec, col, "warn"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Metric{}, fmt.Errorf("metric %q: bad warn threshold %q", name, s)
		}
		th.Warn, th.WarnSet = v, true
	}
	if s := field(rec, col, "crit"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Metric{}, fmt.Errorf("metric %q: bad crit threshold %q", name, s)
		}
		th.Crit, th.CritSet = v, true
	}

	return model.Metric{
		Name:       name,
		OwnerClass: ownerClass,
		Type:       vtype,
		Unit:       field(rec, col, "unit"),
		IsList:     isList,
		IsCounter:  isCounter,
		Thresholds: th,
	}, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func (r *Registry) add(m model.Metric) {
	if _, ok := r.descriptors[m.OwnerClass]; !ok {
		r.descriptors[m.OwnerClass] = make(map[string]model.Metric)
	}
	if _, dup := r.descriptors[m.OwnerClass][m.Name]; !dup {
		r.byOwnerClass[m.OwnerClass] = append(r.byOwnerClass[m.OwnerClass], m.Name)
	}
	r.descriptors[m.OwnerClass][m.Name] = m
	r.byName[m.Name] = m
}

// Names returns the metric names declared for an owner class, in file
// order.
func (r *Registry) Names(ownerClass string) []string {
	return r.byOwnerClass[ownerClass]
}

// Descriptors returns the name->Metric map for an owner class, suitable for
// passing straight to model.Store.Ensure.
func (r *Registry) Descriptors(ownerClass string) map[string]model.Metric {
	return r.descriptors[ownerClass]
}

// Lookup finds a metric descriptor by name regardless of owner class.
func (r *Registry) Lookup(name string) (model.Metric, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// OwnerClasses returns every owner class the registry has descriptors for.
func (r *Registry) OwnerClasses() []string {
	out := make([]string, 0, len(r.byOwnerClass))
	for k := range r.byOwnerClass {
		out = append(out, k)
	}
	return out
}
