package rules

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/registry"
)

// LoadError wraps a failure to open the rule file itself.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("rules: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Ruleset is the loaded, queryable collection of symptoms grouped by the
// node type path they're bound to.
type Ruleset struct {
	byPath map[string][]*model.Symptom
}

// ForPath returns the symptoms bound to a node's type path (e.g.
// "node/bm/cpu", or "node/vm/net/if" for an interface under a VM). A
// symptom's binding is decided once at load time; nothing resolves it
// again per tick.
func (r *Ruleset) ForPath(path string) []*model.Symptom {
	return r.byPath[path]
}

// Load reads a rules.csv file: header name,path,severity,rule. path is a
// node's type path (ancestor owner classes, no instance names); reg
// supplies the per-owner-class identifier whitelist used to compile (and
// reject) each row's rule expression, keyed by path's final segment. Rows
// that fail to parse, or whose severity name or rule identifiers don't
// validate, are skipped and returned in the error slice for the caller to
// report — one bad rule never takes down the whole ruleset.
func Load(path string, reg *registry.Registry) (*Ruleset, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{&LoadError{Path: path, Err: err}}
	}
	defer f.Close()
	return load(path, f, reg)
}

func load(path string, r io.Reader, reg *registry.Registry) (*Ruleset, []error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	// Rule text carries its own string literals ("running", "down"), so a
	// quote inside an unquoted field is part of the rule, not a CSV error.
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, []error{&LoadError{Path: path, Err: err}}
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}

	rs := &Ruleset{byPath: make(map[string][]*model.Symptom)}
	var errs []error

	rowNum := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			errs = append(errs, &ParseError{Expr: path, Err: fmt.Errorf("row %d: %v", rowNum, err)})
			continue
		}
		sym, err := parseRuleRow(rec, col, reg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s:%d: %w", path, rowNum, err))
			continue
		}
		rs.byPath[sym.Path] = append(rs.byPath[sym.Path], sym)
	}
	return rs, errs
}

func field(rec []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseRuleRow(rec []string, col map[string]int, reg *registry.Registry) (*model.Symptom, error) {
	name := field(rec, col, "name")
	if name == "" {
		return nil, fmt.Errorf("missing name")
	}
	path := field(rec, col, "path")
	if path == "" {
		return nil, fmt.Errorf("symptom %q: missing path", name)
	}
	ownerClass := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		ownerClass = path[i+1:]
	}
	if ownerClass == "" {
		return nil, fmt.Errorf("symptom %q: malformed path %q", name, path)
	}
	sevStr := field(rec, col, "severity")
	severity, ok := model.ParseSeverity(sevStr)
	if !ok {
		return nil, fmt.Errorf("symptom %q: unknown severity %q", name, sevStr)
	}
	ruleSrc := field(rec, col, "rule")
	if ruleSrc == "" {
		return nil, fmt.Errorf("symptom %q: empty rule", name)
	}

	allowed := make(map[string]struct{})
	for _, n := range reg.Names(ownerClass) {
		allowed[n] = struct{}{}
	}
	expr, err := Compile(ruleSrc, allowed)
	if err != nil {
		return nil, fmt.Errorf("symptom %q: %w", name, err)
	}

	return &model.Symptom{
		Name:       name,
		Path:       path,
		OwnerClass: ownerClass,
		Severity:   severity,
		Rule:       expr,
	}, nil
}
