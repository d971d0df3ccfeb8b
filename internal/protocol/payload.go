package protocol

import (
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"unicode/utf8"
)

// Payload strings inside attack/dummy/noise/decoy messages travel as
// base64 of UTF-8 so the on-wire bytes do not plainly reveal the semantic
// string to traffic-capture observers.

const suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// EncodePayload encodes a semantic payload string for the wire.
func EncodePayload(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodePayload reverses EncodePayload.
func DecodePayload(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decoding payload: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("payload is not valid UTF-8")
	}
	return string(raw), nil
}

// RandSuffix returns 8 random alphanumerics for payload generation.
func RandSuffix() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}

// DummyPayload builds an encoded broadcast filler payload.
func DummyPayload() string {
	return EncodePayload("DUMMY_" + RandSuffix())
}

// NoisePayload builds an encoded player-to-player filler payload.
func NoisePayload() string {
	return EncodePayload("NOISE_" + RandSuffix())
}

// AttackPayload builds an encoded hostile payload addressed at targetID.
// Decoys use the same shape so the two are indistinguishable on the wire.
func AttackPayload(targetID string) string {
	return EncodePayload("ATTACK_TARGET_" + targetID + "_" + RandSuffix())
}
