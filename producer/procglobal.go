package producer

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/util"
)

var procGlobalNames = []string{"proc_count", "run_count", "blocked_count", "zombie_count"}

var procGlobalDescriptors = map[string]model.Metric{
	"proc_count":    {Name: "proc_count", OwnerClass: "proc", Type: model.TypeInt},
	"run_count":     {Name: "run_count", OwnerClass: "proc", Type: model.TypeInt},
	"blocked_count": {Name: "blocked_count", OwnerClass: "proc", Type: model.TypeInt},
	"zombie_count":  {Name: "zombie_count", OwnerClass: "proc", Type: model.TypeInt},
}

// ProcGlobalProducer scans /proc/<pid>/stat to derive system-wide process
// counts by scheduling state, writing stats_global/{proc_count,run_count,
// blocked_count,zombie_count}.
type ProcGlobalProducer struct{}

func (p *ProcGlobalProducer) Name() string { return "procglobal" }

func (p *ProcGlobalProducer) Collect(store *model.Store) error {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return fmt.Errorf("read /proc: %w", err)
	}

	var total, running, blocked, zombie int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		state, ok := readProcState(e.Name())
		if !ok {
			continue
		}
		total++
		switch state {
		case "R":
			running++
		case "D":
			blocked++
		case "Z":
			zombie++
		}
	}

	dict := store.Ensure("stats_global", procGlobalNames, procGlobalDescriptors)
	dict["proc_count"].Append(total)
	dict["run_count"].Append(running)
	dict["blocked_count"].Append(blocked)
	dict["zombie_count"].Append(zombie)
	return nil
}

// readProcState reads the process state character from /proc/<pid>/stat's
// third field, which follows the "(comm)" field that may itself contain
// spaces or parentheses.
func readProcState(pid string) (string, bool) {
	content, err := util.ReadFileString("/proc/" + pid + "/stat")
	if err != nil {
		return "", false
	}
	close := strings.LastIndexByte(content, ')')
	if close < 0 || close+2 >= len(content) {
		return "", false
	}
	rest := strings.Fields(content[close+1:])
	if len(rest) == 0 {
		return "", false
	}
	return rest[0], true
}

func (p *ProcGlobalProducer) Exit() error { return nil }
