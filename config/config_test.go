package config

import "testing"

func TestRingBufferCapacityRoundsUp(t *testing.T) {
	cases := []struct {
		period, window int
		want            int
	}{
		{1, 60, 60},
		{2, 60, 30},
		{7, 60, 9},  // 60/7 = 8.57 -> rounds up to 9
		{0, 60, 60}, // period clamped to 1
		{5, 0, 12},  // window defaults to 60
	}
	for _, c := range cases {
		cfg := Config{InputPeriodSeconds: c.period, HistorySeconds: c.window}
		if got := cfg.RingBufferCapacity(); got != c.want {
			t.Errorf("RingBufferCapacity(period=%d, window=%d) = %d, want %d", c.period, c.window, got, c.want)
		}
	}
}

func TestRingBufferCapacityNeverBelowOne(t *testing.T) {
	cfg := Config{InputPeriodSeconds: -5, HistorySeconds: -5}
	if got := cfg.RingBufferCapacity(); got < 1 {
		t.Fatalf("RingBufferCapacity() = %d, want >= 1", got)
	}
}

func TestDefaultConfigShape(t *testing.T) {
	cfg := Default()
	if cfg.InputPeriodSeconds != 3 || cfg.HistorySeconds != 60 {
		t.Fatalf("Default() = %+v, want input_period=3 history=60", cfg)
	}
	if cfg.ResourcesDirectory != "/etc/dxagent" {
		t.Fatalf("Default().ResourcesDirectory = %q, want /etc/dxagent", cfg.ResourcesDirectory)
	}
}
