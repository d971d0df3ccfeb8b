package constants

import "time"

// Network defaults.
const (
	// DefaultHost is the default bind address for the game server.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the default TCP port for the game server.
	DefaultPort = 9999

	// PlayerAttackPortBase is the first P2P attack port. A player with
	// index N listens for peer attacks on PlayerAttackPortBase + N.
	PlayerAttackPortBase = 10001

	// FrameHeaderSize is the length-prefix header size (4 bytes, big-endian uint32).
	FrameHeaderSize = 4

	// MaxFrameSize is the largest accepted frame body. Anything above this
	// is treated as a protocol violation, not an allocation request.
	MaxFrameSize = 1 << 20
)

// Match structure.
const (
	// MinPlayers is the minimum number of connected players to start a match.
	MinPlayers = 2

	// MaxPlayers is the default connected-player cap.
	MaxPlayers = 4

	// TotalRounds is the number of rounds in a match.
	TotalRounds = 5
)

// Phase durations. These are the defaults; config may shorten them for tests.
const (
	PreparationTime = 10 * time.Second
	RoundTime       = 90 * time.Second
	DefenseTime     = 20 * time.Second

	// GameStartPause is the pause after the GAME_START broadcast.
	GameStartPause = 3 * time.Second

	// RoundEndPause is the pause after the ROUND_END broadcast.
	RoundEndPause = 5 * time.Second

	// AttackApprovalTimeout is how long a pending attack may stay
	// half-confirmed before it is discarded.
	AttackApprovalTimeout = 5 * time.Second

	// ConnectDeadline is how long a fresh connection has to deliver CONNECT.
	ConnectDeadline = 5 * time.Second
)

// Health.
const (
	InitialHP         = 100
	MaxHP             = 100
	HPDamagePerAttack = 10
)

// Score weights for rounds 1-4.
const (
	ScoreCorrectNormal = 10
	ScoreWrongNormal   = -5
	ScoreMissedNormal  = -3
)

// Score weights for the final round.
const (
	ScoreCorrectFinal = 15
	ScoreWrongFinal   = -10
	ScoreMissedFinal  = -5
)
