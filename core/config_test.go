package core

import (
	"testing"
	"time"
)

func TestSweepConfig_Enabled(t *testing.T) {
	tests := []struct {
		name string
		conf SweepConfig
		want bool
	}{
		{name: "enabled", conf: SweepConfig{Interval: time.Minute}, want: true},
		{name: "disabled", conf: SweepConfig{Interval: time.Minute, Disabled: true}},
		{name: "zero interval", conf: SweepConfig{}},
		{name: "negative interval", conf: SweepConfig{Interval: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conf.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
