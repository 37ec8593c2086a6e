package mastery

import (
	"fmt"
	"math"

	"github.com/mathquest/backend/internal/profile"
)

// Gate is the threshold triple that decides skill mastery.
type Gate struct {
	MinAttempts int     `json:"minAttempts" yaml:"min_attempts"`
	MinAccuracy float64 `json:"minAccuracy" yaml:"min_accuracy"`
	MaxAvgMs    float64 `json:"maxAvgMs" yaml:"max_avg_ms"`
}

// Band names a predefined difficulty gate.
type Band string

const (
	BandEarly Band = "early"
	BandMid   Band = "mid"
	BandLate  Band = "late"
)

// Predefined gates. Later bands demand more attempts and allow slower
// answers.
var (
	GateEarly = Gate{MinAttempts: 20, MinAccuracy: 0.90, MaxAvgMs: 6000}
	GateMid   = Gate{MinAttempts: 25, MinAccuracy: 0.90, MaxAvgMs: 7000}
	GateLate  = Gate{MinAttempts: 30, MinAccuracy: 0.90, MaxAvgMs: 8000}
)

// GateForBand returns the predefined gate for b.
func GateForBand(b Band) (Gate, error) {
	switch b {
	case BandEarly:
		return GateEarly, nil
	case BandMid:
		return GateMid, nil
	case BandLate:
		return GateLate, nil
	}
	return Gate{}, fmt.Errorf("%w: unknown band %q", ErrInvalidGate, b)
}

// MeetsGate reports whether stat satisfies every threshold of gate. A nil
// stat or one with no attempts never passes: its accuracy counts as zero
// and its average latency as unbounded.
func MeetsGate(stat *profile.SkillStat, gate Gate) bool {
	if stat == nil || stat.Attempts == 0 {
		return false
	}
	avg := stat.SmoothedAvgMs
	if math.IsNaN(avg) {
		avg = math.Inf(1)
	}
	return stat.Attempts >= gate.MinAttempts &&
		stat.Accuracy() >= gate.MinAccuracy &&
		avg <= gate.MaxAvgMs
}

func (g Gate) validate() error {
	switch {
	case g.MinAttempts < 1:
		return fmt.Errorf("%w: min attempts %d", ErrInvalidGate, g.MinAttempts)
	case g.MinAccuracy < 0 || g.MinAccuracy > 1:
		return fmt.Errorf("%w: min accuracy %v", ErrInvalidGate, g.MinAccuracy)
	case g.MaxAvgMs <= 0:
		return fmt.Errorf("%w: max average %v", ErrInvalidGate, g.MaxAvgMs)
	}
	return nil
}
