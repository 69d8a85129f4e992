package producer

import (
	"testing"

	"github.com/ftahirops/dxagent/model"
)

func TestReadProcStateForSelf(t *testing.T) {
	state, ok := readProcState("self")
	if !ok {
		t.Fatal("readProcState(\"self\") should succeed for the running test process")
	}
	if state == "" {
		t.Fatal("readProcState(\"self\") returned an empty state")
	}
}

func TestReadProcStateMissingPID(t *testing.T) {
	if _, ok := readProcState("999999999"); ok {
		t.Fatal("readProcState should fail for a pid that does not exist")
	}
}

func TestProcGlobalProducerCollectPopulatesCounts(t *testing.T) {
	p := &ProcGlobalProducer{}
	store := model.NewStore(4)
	if err := p.Collect(store); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	dict, ok := store.Get("stats_global")
	if !ok {
		t.Fatal("expected a stats_global scope after Collect")
	}
	total, ok := dict["proc_count"].Top()
	if !ok {
		t.Fatal("expected a proc_count sample")
	}
	if total.(int64) <= 0 {
		t.Fatalf("proc_count = %v, want > 0 (at least this test process)", total)
	}

	for _, name := range []string{"run_count", "blocked_count", "zombie_count"} {
		if _, ok := dict[name].Top(); !ok {
			t.Fatalf("expected a %s sample", name)
		}
	}
}
