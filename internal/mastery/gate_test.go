package mastery

import (
	"errors"
	"math"
	"testing"

	"github.com/mathquest/backend/internal/profile"
)

func TestMeetsGate_ZeroState(t *testing.T) {
	gates := []Gate{GateEarly, GateMid, GateLate, {MinAttempts: 1, MinAccuracy: 0, MaxAvgMs: math.MaxFloat64}}
	for _, g := range gates {
		if MeetsGate(nil, g) {
			t.Errorf("nil stat passed gate %+v", g)
		}
		if MeetsGate(&profile.SkillStat{}, g) {
			t.Errorf("zero-attempt stat passed gate %+v", g)
		}
	}
}

func TestMeetsGate(t *testing.T) {
	perfect := &profile.SkillStat{Attempts: 20, Correct: 20, SmoothedAvgMs: 5000}

	tests := []struct {
		name string
		stat *profile.SkillStat
		gate Gate
		want bool
	}{
		{"passes all thresholds", perfect, Gate{MinAttempts: 20, MinAccuracy: 0.90, MaxAvgMs: 6000}, true},
		{"too slow", perfect, Gate{MinAttempts: 20, MinAccuracy: 0.90, MaxAvgMs: 4000}, false},
		{"too few attempts", perfect, Gate{MinAttempts: 21, MinAccuracy: 0.90, MaxAvgMs: 6000}, false},
		{"accuracy exactly at threshold", &profile.SkillStat{Attempts: 20, Correct: 18, SmoothedAvgMs: 5000}, GateEarly, true},
		{"accuracy below threshold", &profile.SkillStat{Attempts: 20, Correct: 17, SmoothedAvgMs: 5000}, GateEarly, false},
		{"latency exactly at ceiling", &profile.SkillStat{Attempts: 20, Correct: 20, SmoothedAvgMs: 6000}, GateEarly, true},
		{"NaN latency never passes", &profile.SkillStat{Attempts: 20, Correct: 20, SmoothedAvgMs: math.NaN()}, GateEarly, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MeetsGate(tt.stat, tt.gate); got != tt.want {
				t.Errorf("MeetsGate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBands_Monotonic(t *testing.T) {
	bands := []Gate{GateEarly, GateMid, GateLate}
	for i := 1; i < len(bands); i++ {
		if bands[i].MinAttempts <= bands[i-1].MinAttempts {
			t.Errorf("band %d attempts %d not stricter than %d", i, bands[i].MinAttempts, bands[i-1].MinAttempts)
		}
		if bands[i].MaxAvgMs <= bands[i-1].MaxAvgMs {
			t.Errorf("band %d latency ceiling %v not looser than %v", i, bands[i].MaxAvgMs, bands[i-1].MaxAvgMs)
		}
	}
}

func TestGateForBand(t *testing.T) {
	for band, want := range map[Band]Gate{BandEarly: GateEarly, BandMid: GateMid, BandLate: GateLate} {
		got, err := GateForBand(band)
		if err != nil || got != want {
			t.Errorf("GateForBand(%q) = %+v, %v", band, got, err)
		}
	}
	if _, err := GateForBand("expert"); !errors.Is(err, ErrInvalidGate) {
		t.Errorf("unknown band error = %v, want ErrInvalidGate", err)
	}
}
