package game

import (
	"time"

	"github.com/netsiege/netsiege/internal/constants"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Difficulty is the per-round parameter bundle controlling traffic rates,
// attack caps, and which obfuscation layers are active.
type Difficulty struct {
	Name          string
	DummyInterval time.Duration // mean interval between dummy broadcasts
	AttackLimit   int           // committed attacks per player per round
	DefenseTime   time.Duration // defense input window
	NoiseTraffic  bool
	DecoyAttacks  bool
	DecoyCount    int
	Hint          string
	Warning       string
}

var difficultyByRound = map[int]Difficulty{
	1: {
		Name:          "Rookie",
		DummyInterval: 2 * time.Second,
		AttackLimit:   3,
		DefenseTime:   constants.DefenseTime,
		Hint:          "Learn basic IP-based attack detection",
	},
	2: {
		Name:          "Beginner",
		DummyInterval: 1500 * time.Millisecond,
		AttackLimit:   3,
		DefenseTime:   constants.DefenseTime,
		Hint:          "Dummy packet frequency increases",
	},
	3: {
		Name:          "Intermediate",
		DummyInterval: time.Second,
		AttackLimit:   4,
		DefenseTime:   constants.DefenseTime,
		NoiseTraffic:  true,
		Hint:          "Player-to-player noise traffic is added",
		Warning:       "Caution: traffic that is not an attack may also be observed",
	},
	4: {
		Name:          "Advanced",
		DummyInterval: 800 * time.Millisecond,
		AttackLimit:   4,
		DefenseTime:   constants.DefenseTime,
		NoiseTraffic:  true,
		Hint:          "Dummy packets and noise traffic get more frequent",
		Warning:       "Caution: packet analysis gets harder",
	},
	5: {
		Name:          "Final Round",
		DummyInterval: 500 * time.Millisecond,
		AttackLimit:   5,
		DefenseTime:   constants.DefenseTime,
		NoiseTraffic:  true,
		DecoyAttacks:  true,
		DecoyCount:    10,
		Hint:          "Every obfuscation layer is active",
		Warning:       "Warning: decoy attacks are included!",
	},
}

// ForRound returns the difficulty profile for a round. Out-of-range rounds
// fall back to round 1, matching the original behaviour.
func ForRound(round int) Difficulty {
	if d, ok := difficultyByRound[round]; ok {
		return d
	}
	return difficultyByRound[1]
}

// Summary returns the client-visible slice of the profile.
func (d Difficulty) Summary() protocol.DifficultySummary {
	return protocol.DifficultySummary{
		Name:         d.Name,
		Hint:         d.Hint,
		Warning:      d.Warning,
		AttackLimit:  d.AttackLimit,
		NoiseTraffic: d.NoiseTraffic,
		DecoyAttacks: d.DecoyAttacks,
	}
}
