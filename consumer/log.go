package consumer

import (
	"log"

	"github.com/ftahirops/dxagent/model"
)

// LogConsumer prints a one-line-per-symptom report for every node whose
// health score dropped below 100, the way a verbose-mode CLI run would.
// Intended for -verbose / foreground use, not for machine consumption.
type LogConsumer struct {
	Logger *log.Logger // nil uses the standard logger
}

func (c *LogConsumer) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func (c *LogConsumer) Publish(snap model.AssuranceSnapshot) error {
	l := c.logger()
	for _, n := range snap.Nodes {
		if n.HealthScore >= 100 {
			continue
		}
		l.Printf("tick=%d node=%s score=%d", snap.Tick, n.ID, n.HealthScore)
		for _, sym := range n.Symptoms {
			l.Printf("  symptom=%s weight=%d since=%d", sym.Name, sym.Weight, sym.Since)
		}
	}
	return nil
}
