// cue-tournaments/brackets/single_elimination.go
package brackets

import (
	"context"
	"fmt"
	"math"

	"github.com/Dosada05/cue-tournaments/models"
)

const (
	// MaxParticipants is the registry capacity; larger brackets are rejected.
	MaxParticipants = 32
	// MinParticipants is the smallest field that can be started.
	MinParticipants = 2
)

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket builds the bracket and immediately advances every participant
// who faces a bye, so no bye match ever waits for a result.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (models.Bracket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bracket, err := Build(params.Participants)
	if err != nil {
		return nil, err
	}
	ResolveByes(bracket)
	return bracket, nil
}

// Build maps an ordered participant list onto an elimination tree.
//
// The list is padded with byes at the end up to the next power of two, so byes
// always go to the last registered participants. Round 0 pairs consecutive
// slots; every later round starts as pending matches filled only by
// propagation. A single participant yields zero rounds.
func Build(participants []int) (models.Bracket, error) {
	n := len(participants)

	if n == 0 {
		return nil, fmt.Errorf("%w: cannot generate bracket with zero participants", ErrInvalidInput)
	}
	if n > MaxParticipants {
		return nil, fmt.Errorf("%w: %d participants exceeds the limit of %d", ErrInvalidInput, n, MaxParticipants)
	}

	seen := make(map[int]struct{}, n)
	for _, id := range participants {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: participant %d is listed twice", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	sizeOfFullBracket := 1 << uint(numRounds)

	bracket := make(models.Bracket, 0, numRounds)
	if numRounds == 0 {
		return bracket, nil
	}

	padded := make([]models.Slot, sizeOfFullBracket)
	for i := range padded {
		if i < n {
			padded[i] = models.PlayerSlot(participants[i])
		} else {
			padded[i] = models.ByeSlot()
		}
	}

	first := make(models.Round, sizeOfFullBracket/2)
	for i := range first {
		first[i] = models.Match{Player1: padded[2*i], Player2: padded[2*i+1]}
	}
	bracket = append(bracket, first)

	for matches := len(first) / 2; matches >= 1; matches /= 2 {
		round := make(models.Round, matches)
		for i := range round {
			round[i] = models.Match{Player1: models.PendingSlot(), Player2: models.PendingSlot()}
		}
		bracket = append(bracket, round)
	}

	return bracket, nil
}

// SlotRef addresses one side of a match; Slot is 1 for player1 and 2 for player2.
type SlotRef struct {
	Round int `json:"round"`
	Match int `json:"match"`
	Slot  int `json:"slot"`
}

// nextSlot returns where the result of match k in round r lands.
func nextSlot(round, match int) SlotRef {
	return SlotRef{Round: round + 1, Match: match / 2, Slot: match%2 + 1}
}

func place(b models.Bracket, ref SlotRef, slot models.Slot) {
	m := &b[ref.Round][ref.Match]
	if ref.Slot == 1 {
		m.Player1 = slot
	} else {
		m.Player2 = slot
	}
}

// AutoAdvance records a participant moved on without playing.
type AutoAdvance struct {
	Round         int      `json:"round"`
	Match         int      `json:"match"`
	ParticipantID int      `json:"participant_id"`
	To            *SlotRef `json:"to,omitempty"`
}

// ResolveByes decides every undecided match where a participant faces a bye
// and forwards a bye out of every match where two byes meet. Rounds are
// walked in order, so chains of byes resolve in one call. Calling it again is
// a no-op unless propagation created a new participant-versus-bye match.
func ResolveByes(b models.Bracket) []AutoAdvance {
	var advanced []AutoAdvance
	last := len(b) - 1

	for r := 0; r <= last; r++ {
		for k := range b[r] {
			m := &b[r][k]
			if m.IsDecided() {
				continue
			}

			var (
				sole  models.Slot
				found bool
			)
			switch {
			case m.Player1.IsPlayer() && m.Player2.IsBye():
				sole, found = m.Player1, true
			case m.Player2.IsPlayer() && m.Player1.IsBye():
				sole, found = m.Player2, true
			case m.Player1.IsBye() && m.Player2.IsBye():
				if r < last {
					place(b, nextSlot(r, k), models.ByeSlot())
				}
				continue
			}
			if !found {
				continue
			}

			winner := sole.ParticipantID
			m.Winner = &winner
			adv := AutoAdvance{Round: r, Match: k, ParticipantID: winner}
			if r < last {
				to := nextSlot(r, k)
				place(b, to, sole)
				adv.To = &to
			}
			advanced = append(advanced, adv)
		}
	}
	return advanced
}
