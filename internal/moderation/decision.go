package moderation

import (
	"github.com/postsieve/postsieve/internal/database/types/enum"
	"github.com/postsieve/postsieve/internal/setup/config"
)

// Thresholds are the decision cutoffs for one signal. Both bounds are
// inclusive on the unsafe side: a score exactly at a cutoff takes the
// stricter decision.
type Thresholds struct {
	Flag  float64
	Block float64
}

// NewThresholds builds decision cutoffs from validated configuration.
func NewThresholds(cfg config.SignalThresholds) Thresholds {
	return Thresholds{Flag: cfg.FlagThreshold, Block: cfg.BlockThreshold}
}

// Evaluate maps a score to a decision.
func (t Thresholds) Evaluate(score float64) enum.Decision {
	switch {
	case score >= t.Block:
		return enum.DecisionBlocked
	case score >= t.Flag:
		return enum.DecisionFlagged
	default:
		return enum.DecisionOk
	}
}

// HighestScore returns the worst score the provider reported across all its
// score dimensions. An empty map scores zero.
func HighestScore(scores map[string]float64) float64 {
	var highest float64
	for _, score := range scores {
		if score > highest {
			highest = score
		}
	}

	return highest
}

// Combine folds per-signal decisions into the post-level decision. The worst
// signal always wins.
func Combine(decisions ...enum.Decision) enum.Decision {
	combined := enum.DecisionOk

	for _, d := range decisions {
		if d > combined {
			combined = d
		}
	}

	return combined
}
