package game

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func committedFrom(target string, addrs ...string) []CommittedAttack {
	out := make([]CommittedAttack, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, CommittedAttack{
			AttackerID:   "atk",
			TargetID:     target,
			AttackerAddr: addr,
		})
	}
	return out
}

func submitted(addrs ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return set
}

func TestScoreRoundAllCorrect(t *testing.T) {
	committed := committedFrom("B", "10.0.0.1", "10.0.0.2")
	subs := map[string]map[string]struct{}{"B": submitted("10.0.0.1", "10.0.0.2")}

	res := ScoreRound(1, committed, subs, []string{"B"})["B"]
	require.Equal(t, 20, res.ScoreDelta)
	require.Zero(t, res.HPDelta)
	require.True(t, res.Clean)
	require.Equal(t, "correct: 2 (+20)", res.Reason)
}

func TestScoreRoundPartialMiss(t *testing.T) {
	committed := committedFrom("B", "10.0.0.1", "10.0.0.2")
	subs := map[string]map[string]struct{}{"B": submitted("10.0.0.1")}

	res := ScoreRound(2, committed, subs, []string{"B"})["B"]
	require.Equal(t, 10-3, res.ScoreDelta)
	require.Equal(t, -10, res.HPDelta)
	require.False(t, res.Clean)
	require.Equal(t, 1, res.Correct)
	require.Equal(t, 1, res.Missed)
}

func TestScoreRoundWrongGuess(t *testing.T) {
	committed := committedFrom("B", "10.0.0.1")
	subs := map[string]map[string]struct{}{"B": submitted("10.0.0.1", "10.0.0.9")}

	res := ScoreRound(3, committed, subs, []string{"B"})["B"]
	require.Equal(t, 10-5, res.ScoreDelta)
	require.Zero(t, res.HPDelta)
	require.False(t, res.Clean)
	require.Equal(t, 1, res.Wrong)
}

func TestScoreRoundRepeatAttackerDefendedOnce(t *testing.T) {
	// Two hits from the same address: the submission defuses the first,
	// the second still lands.
	committed := committedFrom("B", "10.0.0.1", "10.0.0.1")
	subs := map[string]map[string]struct{}{"B": submitted("10.0.0.1")}

	res := ScoreRound(1, committed, subs, []string{"B"})["B"]
	require.Equal(t, 10-3, res.ScoreDelta)
	require.Equal(t, -10, res.HPDelta)
	require.Equal(t, 1, res.Correct)
	require.Equal(t, 1, res.Missed)
	require.True(t, res.Clean, "all attacker addresses were identified")
}

func TestScoreRoundFinalWeights(t *testing.T) {
	committed := committedFrom("B", "10.0.0.1", "10.0.0.2")
	subs := map[string]map[string]struct{}{"B": submitted("10.0.0.1", "10.0.0.9")}

	res := ScoreRound(5, committed, subs, []string{"B"})["B"]
	require.Equal(t, 15-10-5, res.ScoreDelta)
	require.Equal(t, -10, res.HPDelta)
	require.Contains(t, res.Reason, "decoy")
}

func TestScoreRoundNoAttacksNoSubmission(t *testing.T) {
	res := ScoreRound(1, nil, nil, []string{"B"})["B"]
	require.Zero(t, res.ScoreDelta)
	require.Zero(t, res.HPDelta)
	require.True(t, res.Clean)
	require.Equal(t, "no attacks", res.Reason)
}

func TestScoreRoundCoversEveryPlayer(t *testing.T) {
	committed := committedFrom("B", "10.0.0.1")
	results := ScoreRound(1, committed, nil, []string{"A", "B", "C"})

	require.Len(t, results, 3)
	require.Zero(t, results["A"].ScoreDelta)
	require.Equal(t, -3, results["B"].ScoreDelta)
	require.Equal(t, -10, results["B"].HPDelta)
}

func TestScoreRoundProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		round := rapid.IntRange(1, 5).Draw(t, "round")
		addrPool := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"}

		hits := rapid.SliceOfN(rapid.SampledFrom(addrPool), 0, 8).Draw(t, "hits")
		guesses := rapid.SliceOfN(rapid.SampledFrom(addrPool), 0, 4).Draw(t, "guesses")

		committed := committedFrom("B", hits...)
		subs := map[string]map[string]struct{}{"B": submitted(guesses...)}

		res := ScoreRound(round, committed, subs, []string{"B"})["B"]
		cw, ww, mw := roundWeights(round)

		require.Equal(t, res.Correct*cw+res.Wrong*ww+res.Missed*mw, res.ScoreDelta)
		require.Equal(t, -res.Missed*10, res.HPDelta)
		require.LessOrEqual(t, res.Missed, len(hits))
		require.LessOrEqual(t, res.Wrong, len(guesses))
		if res.Clean {
			require.Zero(t, res.Wrong)
		}

		// Identifying one more real attacker never lowers the score.
		for _, hit := range hits {
			if _, ok := subs["B"][hit]; ok {
				continue
			}
			widened := map[string]map[string]struct{}{"B": submitted(append([]string{hit}, guesses...)...)}
			res2 := ScoreRound(round, committed, widened, []string{"B"})["B"]
			require.GreaterOrEqual(t, res2.ScoreDelta, res.ScoreDelta)
			break
		}
	})
}
