package protocol

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// Wire message types. "type" is always present in the JSON envelope.
const (
	// Client → server
	TypeConnect       = "CONNECT"
	TypeAttackRequest = "ATTACK_REQUEST"
	TypeAttackConfirm = "ATTACK_CONFIRM"
	TypeDefense       = "DEFENSE"

	// Peer → peer (never valid on the server socket)
	TypeAttack = "ATTACK"

	// Server → client
	TypeInfo                  = "INFO"
	TypePlayerList            = "PLAYER_LIST"
	TypeGameStart             = "GAME_START"
	TypeRoundStart            = "ROUND_START"
	TypePlaying               = "PLAYING"
	TypeDefensePhase          = "DEFENSE_PHASE"
	TypeRoundEnd              = "ROUND_END"
	TypeGameEnd               = "GAME_END"
	TypeAttackApproved        = "ATTACK_APPROVED"
	TypeIncomingAttackWarning = "INCOMING_ATTACK_WARNING"
	TypeDummy                 = "DUMMY"
	TypeNoise                 = "NOISE"
	TypeDecoyAttack           = "DECOY_ATTACK"
	TypeScore                 = "SCORE"
)

// Info subtypes carried in the info_type field.
const (
	InfoWelcome      = "WELCOME"
	InfoTimeUpdate   = "TIME_UPDATE"
	InfoAttackDenied = "ATTACK_DENIED"
	InfoDefenseAck   = "DEFENSE_ACK"
	InfoError        = "ERROR"
)

// Confirm directions for ATTACK_CONFIRM.
const (
	ConfirmSent     = "SENT"
	ConfirmReceived = "RECEIVED"
)

// Envelope is the common part of every wire message. Timestamp is seconds
// since epoch and informational only; Encode stamps it when zero.
type Envelope struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

func (e *Envelope) envelope() *Envelope { return e }

// Message is any value that travels inside a frame.
type Message interface {
	envelope() *Envelope
	wireType() string
}

// Connect is the first frame a client sends after TCP accept.
type Connect struct {
	Envelope
	PlayerID string `json:"player_id"`
}

// AttackRequest asks the server to approve an attack on another player.
type AttackRequest struct {
	Envelope
	AttackerID string `json:"attacker_id"`
	TargetID   string `json:"target_id"`
}

// AttackConfirm reports one side of a two-phase attack exchange.
type AttackConfirm struct {
	Envelope
	AttackID    string `json:"attack_id"`
	ConfirmType string `json:"confirm_type"`
	FromPlayer  string `json:"from_player,omitempty"`
	ToPlayer    string `json:"to_player,omitempty"`
}

// Defense submits the set of addresses a player believes attacked them.
// Repeated submissions within a round accumulate (union).
type Defense struct {
	Envelope
	PlayerID    string   `json:"player_id"`
	AttackerIPs []string `json:"attacker_ips"`
}

// Attack is the peer-delivered hostile packet. It is written once to the
// target's P2P port and never to the server socket.
type Attack struct {
	Envelope
	AttackID   string `json:"attack_id"`
	FromPlayer string `json:"from_player"`
	ToPlayer   string `json:"to_player"`
	Payload    string `json:"payload"`
}

// Info is the server's general notification channel; InfoType selects the
// variant (WELCOME, TIME_UPDATE, ATTACK_DENIED, ERROR).
type Info struct {
	Envelope
	InfoType      string `json:"info_type"`
	Message       string `json:"message"`
	PlayerID      string `json:"player_id,omitempty"`
	PlayerIP      string `json:"player_ip,omitempty"`
	PlayerIndex   *int   `json:"player_index,omitempty"`
	TimeRemaining int    `json:"time_remaining,omitempty"`
}

// PlayerInfo is the per-player projection broadcast in player lists.
type PlayerInfo struct {
	PlayerID    string `json:"player_id"`
	IP          string `json:"ip"`
	Score       int    `json:"score"`
	HP          int    `json:"hp"`
	IsConnected bool   `json:"is_connected"`
}

// PlayerList is broadcast on every join/leave and after HP changes.
type PlayerList struct {
	Envelope
	Players []PlayerInfo `json:"players"`
}

// DifficultySummary is the client-visible slice of a round profile.
type DifficultySummary struct {
	Name         string `json:"name"`
	Hint         string `json:"hint"`
	Warning      string `json:"warning,omitempty"`
	AttackLimit  int    `json:"attack_limit"`
	NoiseTraffic bool   `json:"noise_traffic"`
	DecoyAttacks bool   `json:"decoy_attacks"`
}

// GameStart announces the match and carries the starting roster.
type GameStart struct {
	Envelope
	RoundNum    int          `json:"round_num"`
	TotalRounds int          `json:"total_rounds"`
	Message     string       `json:"message,omitempty"`
	Players     []PlayerInfo `json:"players,omitempty"`
}

// RoundStart opens the preparation phase of a round.
type RoundStart struct {
	Envelope
	RoundNum      int               `json:"round_num"`
	TotalRounds   int               `json:"total_rounds"`
	TimeRemaining int               `json:"time_remaining"`
	Message       string            `json:"message,omitempty"`
	Difficulty    DifficultySummary `json:"difficulty"`
}

// Playing opens the play phase.
type Playing struct {
	Envelope
	RoundNum      int    `json:"round_num"`
	TimeRemaining int    `json:"time_remaining"`
	Message       string `json:"message,omitempty"`
}

// DefensePhase opens the defense-input window.
type DefensePhase struct {
	Envelope
	RoundNum      int    `json:"round_num"`
	TimeRemaining int    `json:"time_remaining"`
	Message       string `json:"message,omitempty"`
}

// RoundEnd closes a round with the updated roster.
type RoundEnd struct {
	Envelope
	RoundNum int          `json:"round_num"`
	Message  string       `json:"message,omitempty"`
	Players  []PlayerInfo `json:"players,omitempty"`
}

// Ranking is one entry of the final standings.
type Ranking struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Score    int    `json:"score"`
	HP       int    `json:"hp"`
}

// GameEnd closes the match. A stop command broadcasts a synthetic GameEnd
// with no rankings and a nil winner.
type GameEnd struct {
	Envelope
	Message  string    `json:"message,omitempty"`
	Rankings []Ranking `json:"rankings,omitempty"`
	Winner   *string   `json:"winner"`
}

// AttackApproved authorises the attacker to open a P2P connection.
// TargetIP is the address the server observed on the target's TCP
// connection, not any nominal address the target reported.
type AttackApproved struct {
	Envelope
	AttackID   string `json:"attack_id"`
	TargetIP   string `json:"target_ip"`
	TargetPort int    `json:"target_port"`
	TargetID   string `json:"target_id"`
}

// IncomingAttackWarning tells the target an approved attack is inbound.
type IncomingAttackWarning struct {
	Envelope
	AttackID   string `json:"attack_id"`
	AttackerIP string `json:"attacker_ip"`
	AttackerID string `json:"attacker_id"`
}

// Dummy is benign broadcast filler traffic.
type Dummy struct {
	Envelope
	Payload string `json:"payload"`
}

// Noise is benign player-to-player filler traffic, delivered to the
// receiver only.
type Noise struct {
	Envelope
	FromIP     string `json:"from_ip"`
	ToIP       string `json:"to_ip"`
	FromPlayer string `json:"from_player"`
	ToPlayer   string `json:"to_player"`
	Payload    string `json:"payload"`
}

// DecoyAttack is a server-synthesised pseudo-attack. On the wire it looks
// like a real attack except for its type tag and the is_decoy marker.
type DecoyAttack struct {
	Envelope
	FromIP     string `json:"from_ip"`
	ToIP       string `json:"to_ip"`
	FromPlayer string `json:"from_player"`
	ToPlayer   string `json:"to_player"`
	Payload    string `json:"payload"`
	IsDecoy    bool   `json:"is_decoy"`
}

// Score delivers one player's round result.
type Score struct {
	Envelope
	PlayerID string `json:"player_id"`
	Score    int    `json:"score"`
	HP       int    `json:"hp"`
	Correct  bool   `json:"correct"`
	Reason   string `json:"reason"`
}

// Unknown is the catch-all for message types the server does not route.
type Unknown struct {
	Envelope
	Raw []byte `json:"-"`
}

func (m *Connect) wireType() string               { return TypeConnect }
func (m *AttackRequest) wireType() string         { return TypeAttackRequest }
func (m *AttackConfirm) wireType() string         { return TypeAttackConfirm }
func (m *Defense) wireType() string               { return TypeDefense }
func (m *Attack) wireType() string                { return TypeAttack }
func (m *Info) wireType() string                  { return TypeInfo }
func (m *PlayerList) wireType() string            { return TypePlayerList }
func (m *GameStart) wireType() string             { return TypeGameStart }
func (m *RoundStart) wireType() string            { return TypeRoundStart }
func (m *Playing) wireType() string               { return TypePlaying }
func (m *DefensePhase) wireType() string          { return TypeDefensePhase }
func (m *RoundEnd) wireType() string              { return TypeRoundEnd }
func (m *GameEnd) wireType() string               { return TypeGameEnd }
func (m *AttackApproved) wireType() string        { return TypeAttackApproved }
func (m *IncomingAttackWarning) wireType() string { return TypeIncomingAttackWarning }
func (m *Dummy) wireType() string                 { return TypeDummy }
func (m *Noise) wireType() string                 { return TypeNoise }
func (m *DecoyAttack) wireType() string           { return TypeDecoyAttack }
func (m *Score) wireType() string                 { return TypeScore }
func (m *Unknown) wireType() string               { return m.Type }

// TypeOf returns the wire type tag a message encodes with.
func TypeOf(m Message) string { return m.wireType() }

// Encode serialises a message to its JSON body, stamping the type tag and,
// when unset, the timestamp.
func Encode(m Message) ([]byte, error) {
	env := m.envelope()
	env.Type = m.wireType()
	if env.Timestamp == 0 {
		env.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, protocolErrorf("encoding %s: %v", env.Type, err)
	}
	return data, nil
}

// Decode parses one frame body into its typed message. Unknown type tags
// yield *Unknown so the dispatcher can log and ignore them.
func Decode(data []byte) (Message, error) {
	if !utf8.Valid(data) {
		return nil, protocolErrorf("frame body is not valid UTF-8")
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, protocolErrorf("frame body is not a JSON object: %v", err)
	}
	if env.Type == "" {
		return nil, protocolErrorf("frame body has no type field")
	}

	var msg Message
	switch env.Type {
	case TypeConnect:
		msg = &Connect{}
	case TypeAttackRequest:
		msg = &AttackRequest{}
	case TypeAttackConfirm:
		msg = &AttackConfirm{}
	case TypeDefense:
		msg = &Defense{}
	case TypeAttack:
		msg = &Attack{}
	case TypeInfo:
		msg = &Info{}
	case TypePlayerList:
		msg = &PlayerList{}
	case TypeGameStart:
		msg = &GameStart{}
	case TypeRoundStart:
		msg = &RoundStart{}
	case TypePlaying:
		msg = &Playing{}
	case TypeDefensePhase:
		msg = &DefensePhase{}
	case TypeRoundEnd:
		msg = &RoundEnd{}
	case TypeGameEnd:
		msg = &GameEnd{}
	case TypeAttackApproved:
		msg = &AttackApproved{}
	case TypeIncomingAttackWarning:
		msg = &IncomingAttackWarning{}
	case TypeDummy:
		msg = &Dummy{}
	case TypeNoise:
		msg = &Noise{}
	case TypeDecoyAttack:
		msg = &DecoyAttack{}
	case TypeScore:
		msg = &Score{}
	default:
		return &Unknown{Envelope: env, Raw: data}, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, protocolErrorf("decoding %s: %v", env.Type, err)
	}
	return msg, nil
}
