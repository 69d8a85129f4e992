package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/registry"
)

// testScope adapts a plain model.DictOfRingBuffers to model.Scope for tests.
type testScope struct {
	dict model.DictOfRingBuffers
}

func (s testScope) Buffer(name string) (*model.RingBuffer, bool) {
	rb, ok := s.dict[name]
	return rb, ok
}

func newScope(t *testing.T, values map[string]interface{}) testScope {
	t.Helper()
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	descriptors := make(map[string]model.Metric, len(values))
	for name, v := range values {
		switch v.(type) {
		case float64:
			descriptors[name] = model.Metric{Name: name, Type: model.TypeFloat}
		case string:
			descriptors[name] = model.Metric{Name: name, Type: model.TypeString}
		default:
			descriptors[name] = model.Metric{Name: name, Type: model.TypeInt}
		}
	}
	dict := model.NewDictOfRingBuffers(names, 8, descriptors)
	for name, v := range values {
		if err := dict[name].Append(v); err != nil {
			t.Fatalf("seed %s=%v: %v", name, v, err)
		}
	}
	return testScope{dict: dict}
}

func evalBool(t *testing.T, src string, values map[string]interface{}) bool {
	t.Helper()
	expr, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	ok, err := expr.Eval(newScope(t, values))
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return ok
}

func TestParseComparisons(t *testing.T) {
	cases := []struct {
		src    string
		values map[string]interface{}
		want   bool
	}{
		{"load1 > 4", map[string]interface{}{"load1": 5.0}, true},
		{"load1 > 4", map[string]interface{}{"load1": 3.0}, false},
		{"load1 >= 4", map[string]interface{}{"load1": 4.0}, true},
		{"load1 <= 4", map[string]interface{}{"load1": 4.0}, true},
		{"load1 < 4", map[string]interface{}{"load1": 3.0}, true},
		{"operstate == \"down\"", map[string]interface{}{"operstate": "down"}, true},
		{"operstate == \"down\"", map[string]interface{}{"operstate": "up"}, false},
		{"operstate != \"down\"", map[string]interface{}{"operstate": "up"}, true},
	}
	for _, c := range cases {
		if got := evalBool(t, c.src, c.values); got != c.want {
			t.Errorf("eval(%q) = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestParseAndOrNot(t *testing.T) {
	vals := map[string]interface{}{"load1": 5.0, "load5": 3.0}
	if !evalBool(t, "load1 > 4 and load5 > 2", vals) {
		t.Fatal("and of two true comparisons should be true")
	}
	if evalBool(t, "load1 > 4 and load5 > 10", vals) {
		t.Fatal("and with one false comparison should be false")
	}
	if !evalBool(t, "load1 > 10 or load5 > 2", vals) {
		t.Fatal("or with one true comparison should be true")
	}
	if !evalBool(t, "not load1 > 10", vals) {
		t.Fatal("not should negate a false comparison to true")
	}
}

func TestParseNoGroupingParens(t *testing.T) {
	// The grammar offers no (expr) grouping for boolean sub-expressions;
	// parentheses are valid only as a trailing zero-arg method call.
	if _, err := Parse("not (state == \"running\")"); err == nil {
		t.Fatal("parenthesized grouping around a comparison should fail to parse")
	}
	// The idiomatic equivalent relies on not's own recursion into cmp.
	if evalBool(t, "not state == \"running\"", map[string]interface{}{"state": "stopped"}) != true {
		t.Fatal("not state == \"running\" should negate the comparison directly")
	}
}

func TestParseInOperatorIsSubstringContainment(t *testing.T) {
	vals := map[string]interface{}{"virtualization": "vm-kvm"}
	if !evalBool(t, `virtualization in "|vm-kvm|vm-virtualbox|vm-vmware|"`, vals) {
		t.Fatal("in should match when the left operand is a substring of the right")
	}
	vals2 := map[string]interface{}{"virtualization": "bare-metal"}
	if evalBool(t, `virtualization in "|vm-kvm|vm-virtualbox|vm-vmware|"`, vals2) {
		t.Fatal("in should not match when the left operand is absent from the right")
	}
}

func TestParseAggregateMethodCalls(t *testing.T) {
	// Counter samples 0, 100, 250 -> deltas [0, 100, 150], mean == 83.33.
	names := []string{"io_time_ms"}
	dict := model.NewDictOfRingBuffers(names, 8, map[string]model.Metric{
		"io_time_ms": {Name: "io_time_ms", Type: model.TypeInt, IsCounter: true},
	})
	for _, v := range []int64{0, 100, 250} {
		dict["io_time_ms"].Append(v)
	}
	scope := testScope{dict: dict}

	below, err := mustParse(t, "io_time_ms.mean() > 100").Eval(scope)
	if err != nil || below {
		t.Fatalf("mean()=83.33 should not exceed 100; got %v, err=%v", below, err)
	}
	above, err := mustParse(t, "io_time_ms.mean() > 50").Eval(scope)
	if err != nil || !above {
		t.Fatalf("mean()=83.33 should exceed 50; got %v, err=%v", above, err)
	}
	sumOk, err := mustParse(t, "io_time_ms.sum() == 250").Eval(scope)
	if err != nil || !sumOk {
		t.Fatalf("sum() of deltas [0,100,150] should be 250; got %v, err=%v", sumOk, err)
	}
}

func mustParse(t *testing.T, src string) model.Expr {
	t.Helper()
	expr, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return expr
}

func TestParseRejectsMalformedExpressions(t *testing.T) {
	bad := []string{
		"load1 >",
		"load1 >> 4",
		"load1 > 4 and",
		"load1 > 4 extra",
		"\"unterminated",
		"load1 = 4",
	}
	for _, src := range bad {
		if _, err := Parse(src); err == nil {
			t.Errorf("Parse(%q) should have failed", src)
		}
	}
}

func TestCompileRejectsUnknownIdentifier(t *testing.T) {
	allowed := map[string]struct{}{"load1": {}}
	if _, err := Compile("load1 > 4", allowed); err != nil {
		t.Fatalf("Compile with a known identifier should succeed: %v", err)
	}
	if _, err := Compile("unknown_metric > 4", allowed); err == nil {
		t.Fatal("Compile should reject an identifier outside the owner class's registered names")
	}
}

func TestEvalUnavailableMetricNeverFires(t *testing.T) {
	expr, err := Parse("load1 > 4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dict := model.NewDictOfRingBuffers([]string{"load1"}, 4, nil)
	_, err = expr.Eval(testScope{dict: dict})
	if err == nil {
		t.Fatal("evaluating against an empty ring buffer should return an error (unavailable), not a value")
	}
}

func TestLoadGoodAndBadRuleRows(t *testing.T) {
	dir := t.TempDir()
	metricsPath := filepath.Join(dir, "metrics.csv")
	if err := os.WriteFile(metricsPath, []byte(`name,owner_class,type,unit,is_list,is_counter,warn,crit
load1,cpu,float,load,0,0,4,8
load5,cpu,float,load,0,0,2,4
state,vm,str,,0,0,,
`), 0o644); err != nil {
		t.Fatalf("write metrics.csv: %v", err)
	}
	reg, regErrs := registry.Load(metricsPath)
	if len(regErrs) != 0 {
		t.Fatalf("unexpected registry errors: %v", regErrs)
	}

	csv := `name,path,severity,rule
cpu_high_load,node/bm/cpu,orange,load1 > 4 and load5 > 2
vm_not_running,node/vm,red,not state == "running"
bad_severity,node/bm/cpu,purple,load1 > 4
bad_identifier,node/bm/cpu,orange,unknown_metric > 4
bad_syntax,node/bm/cpu,orange,load1 >
`
	rs, errs := load("rules.csv", strings.NewReader(csv), reg)
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3 (bad severity, bad identifier, bad syntax); errs=%v", len(errs), errs)
	}
	cpuSyms := rs.ForPath("node/bm/cpu")
	if len(cpuSyms) != 1 || cpuSyms[0].Name != "cpu_high_load" {
		t.Fatalf("ForPath(node/bm/cpu) = %v, want exactly [cpu_high_load]", cpuSyms)
	}
	vmSyms := rs.ForPath("node/vm")
	if len(vmSyms) != 1 || vmSyms[0].Name != "vm_not_running" {
		t.Fatalf("ForPath(node/vm) = %v, want exactly [vm_not_running]", vmSyms)
	}
}

func TestLoadBindsByPathNotBareOwnerClass(t *testing.T) {
	dir := t.TempDir()
	metricsPath := filepath.Join(dir, "metrics.csv")
	if err := os.WriteFile(metricsPath, []byte(`name,owner_class,type,unit,is_list,is_counter,warn,crit
load1,cpu,float,load,0,0,4,8
`), 0o644); err != nil {
		t.Fatalf("write metrics.csv: %v", err)
	}
	reg, regErrs := registry.Load(metricsPath)
	if len(regErrs) != 0 {
		t.Fatalf("unexpected registry errors: %v", regErrs)
	}

	csv := `name,path,severity,rule
cpu_high_load,node/bm/cpu,orange,load1 > 4
`
	rs, errs := load("rules.csv", strings.NewReader(csv), reg)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(rs.ForPath("node/bm/cpu")) != 1 {
		t.Fatal("a rule bound to node/bm/cpu should be findable at that exact path")
	}
	if len(rs.ForPath("node/vm/cpu")) != 0 {
		t.Fatal("a rule bound to node/bm/cpu must not also bind to a different tree position sharing the same owner class")
	}
}
