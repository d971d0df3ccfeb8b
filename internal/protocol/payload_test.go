package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPayloadRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		got, err := DecodePayload(EncodePayload(s))
		if err != nil {
			t.Fatalf("round trip failed: %v", err)
		}
		if got != s {
			t.Fatalf("round trip mismatch: %q != %q", got, s)
		}
	})
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	_, err := DecodePayload("not base64 !!!")
	require.Error(t, err)
}

func TestRandSuffixShape(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		s := RandSuffix()
		require.Len(t, s, 8)
		for _, r := range s {
			require.Contains(t, suffixAlphabet, string(r))
		}
		seen[s] = true
	}
	require.Greater(t, len(seen), 1, "suffixes should vary")
}

func TestGeneratedPayloadPrefixes(t *testing.T) {
	dummy, err := DecodePayload(DummyPayload())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dummy, "DUMMY_"))

	noise, err := DecodePayload(NoisePayload())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(noise, "NOISE_"))

	attack, err := DecodePayload(AttackPayload("bob"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(attack, "ATTACK_TARGET_bob_"))
}
