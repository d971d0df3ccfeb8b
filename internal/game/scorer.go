package game

import (
	"fmt"
	"strings"

	"github.com/netsiege/netsiege/internal/constants"
)

// RoundResult is one player's outcome for a round.
type RoundResult struct {
	ScoreDelta int
	HPDelta    int // non-positive; registry clamps on apply
	Correct    int // submitted addresses that really attacked
	Wrong      int // mistaken identifications, decoys included
	Missed     int // attack instances that slipped through
	Clean      bool
	Reason     string
}

// ScoreRound computes per-player deltas from the round's committed attacks
// and the accumulated defense submissions.
//
// A correct identification defuses the address once: the first hit from a
// submitted address is defended, further hits from it still land. Every hit
// from an unsubmitted address lands.
func ScoreRound(round int, committed []CommittedAttack, submissions map[string]map[string]struct{}, playerIDs []string) map[string]RoundResult {
	correctW, wrongW, missedW := roundWeights(round)

	// attacker addresses per target, with multiplicity
	sourcesByTarget := make(map[string][]string)
	for _, atk := range committed {
		sourcesByTarget[atk.TargetID] = append(sourcesByTarget[atk.TargetID], atk.AttackerAddr)
	}

	results := make(map[string]RoundResult, len(playerIDs))
	for _, id := range playerIDs {
		sources := sourcesByTarget[id]
		multiplicity := make(map[string]int, len(sources))
		for _, addr := range sources {
			multiplicity[addr]++
		}

		submitted := submissions[id]

		correct, wrong, missed := 0, 0, 0
		missedUnique := 0
		for addr, hits := range multiplicity {
			if _, ok := submitted[addr]; ok {
				correct++
				missed += hits - 1 // first hit defended, the rest slip through
			} else {
				missed += hits
				missedUnique++
			}
		}
		for addr := range submitted {
			if _, ok := multiplicity[addr]; !ok {
				wrong++
			}
		}

		res := RoundResult{
			ScoreDelta: correct*correctW + wrong*wrongW + missed*missedW,
			HPDelta:    -missed * constants.HPDamagePerAttack,
			Correct:    correct,
			Wrong:      wrong,
			Missed:     missed,
			Clean:      wrong == 0 && missedUnique == 0,
		}
		res.Reason = buildReason(round, res, correctW, wrongW, missedW)
		results[id] = res
	}
	return results
}

func roundWeights(round int) (correct, wrong, missed int) {
	if round == constants.TotalRounds {
		return constants.ScoreCorrectFinal, constants.ScoreWrongFinal, constants.ScoreMissedFinal
	}
	return constants.ScoreCorrectNormal, constants.ScoreWrongNormal, constants.ScoreMissedNormal
}

func buildReason(round int, res RoundResult, correctW, wrongW, missedW int) string {
	var parts []string
	if res.Correct > 0 {
		parts = append(parts, fmt.Sprintf("correct: %d (+%d)", res.Correct, res.Correct*correctW))
	}
	if res.Wrong > 0 {
		parts = append(parts, fmt.Sprintf("wrong: %d (%d)", res.Wrong, res.Wrong*wrongW))
	}
	if res.Missed > 0 {
		parts = append(parts, fmt.Sprintf("missed: %d (%d)", res.Missed, res.Missed*missedW))
	}
	if len(parts) == 0 {
		return "no attacks"
	}

	reason := strings.Join(parts, ", ")
	if round == constants.TotalRounds && res.Wrong > 0 {
		reason += fmt.Sprintf(" [warning: may include %d decoy(s)]", res.Wrong)
	}
	return reason
}
