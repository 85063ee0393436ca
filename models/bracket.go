package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SlotState distinguishes a bye from a slot still waiting for a winner.
type SlotState string

const (
	SlotBye     SlotState = "bye"
	SlotPending SlotState = "pending"
	SlotPlayer  SlotState = "player"
)

// Slot is one side of a match.
type Slot struct {
	State         SlotState `json:"state"`
	ParticipantID int       `json:"participant_id,omitempty"`
}

func ByeSlot() Slot     { return Slot{State: SlotBye} }
func PendingSlot() Slot { return Slot{State: SlotPending} }

func PlayerSlot(participantID int) Slot {
	return Slot{State: SlotPlayer, ParticipantID: participantID}
}

func (s Slot) IsEmpty() bool  { return s.State != SlotPlayer }
func (s Slot) IsBye() bool    { return s.State == SlotBye }
func (s Slot) IsPlayer() bool { return s.State == SlotPlayer }

// Holds reports whether the slot is occupied by participantID.
func (s Slot) Holds(participantID int) bool {
	return s.State == SlotPlayer && s.ParticipantID == participantID
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	type rawSlot Slot
	var raw rawSlot
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.State {
	case SlotBye, SlotPending:
		raw.ParticipantID = 0
	case SlotPlayer:
	default:
		return fmt.Errorf("unknown slot state %q", raw.State)
	}
	*s = Slot(raw)
	return nil
}

type Match struct {
	Player1 Slot `json:"player1"`
	Player2 Slot `json:"player2"`
	Winner  *int `json:"winner"`
}

func (m Match) IsDecided() bool { return m.Winner != nil }

// IsContested reports whether both sides hold real participants.
func (m Match) IsContested() bool {
	return m.Player1.IsPlayer() && m.Player2.IsPlayer()
}

// HasPlayer reports whether participantID occupies either slot.
func (m Match) HasPlayer(participantID int) bool {
	return m.Player1.Holds(participantID) || m.Player2.Holds(participantID)
}

type Round []Match

// Bracket is the full elimination tree, round 0 first.
type Bracket []Round

// Final returns the single match of the last round.
func (b Bracket) Final() (Match, bool) {
	if len(b) == 0 || len(b[len(b)-1]) != 1 {
		return Match{}, false
	}
	return b[len(b)-1][0], true
}

// Champion returns the final's winner once it is decided.
func (b Bracket) Champion() (int, bool) {
	final, ok := b.Final()
	if !ok || final.Winner == nil {
		return 0, false
	}
	return *final.Winner, true
}

// MatchAt returns the addressed match, reporting whether the coordinates exist.
func (b Bracket) MatchAt(round, match int) (Match, bool) {
	if round < 0 || round >= len(b) || match < 0 || match >= len(b[round]) {
		return Match{}, false
	}
	return b[round][match], true
}

func (b Bracket) Clone() Bracket {
	if b == nil {
		return nil
	}
	c := make(Bracket, len(b))
	for i, round := range b {
		c[i] = make(Round, len(round))
		for j, m := range round {
			if m.Winner != nil {
				w := *m.Winner
				m.Winner = &w
			}
			c[i][j] = m
		}
	}
	return c
}

// Value stores the bracket as JSONB; an unbuilt bracket is NULL.
func (b Bracket) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

func (b *Bracket) Scan(src interface{}) error {
	if src == nil {
		*b = nil
		return nil
	}
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan bracket: %w", err)
	}
	return json.Unmarshal(data, b)
}

// ParticipantIDs is an ordered list of registered user IDs stored as a JSONB array.
type ParticipantIDs []int

func (p ParticipantIDs) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(p))
}

func (p *ParticipantIDs) Scan(src interface{}) error {
	if src == nil {
		*p = ParticipantIDs{}
		return nil
	}
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan participants: %w", err)
	}
	return json.Unmarshal(data, (*[]int)(p))
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported source type %T", src)
	}
}
