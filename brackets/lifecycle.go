package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/cue-tournaments/models"
)

// Outcome describes everything a recorded result changed.
type Outcome struct {
	Round        int           `json:"round"`
	Match        int           `json:"match"`
	WinnerID     int           `json:"winner_id"`
	Advanced     *SlotRef      `json:"advanced_to,omitempty"`
	AutoAdvanced []AutoAdvance `json:"auto_advanced,omitempty"`
	Completed    bool          `json:"completed"`
	ChampionID   *int          `json:"champion_id,omitempty"`
}

// Start freezes the participant snapshot into a bracket and moves the
// tournament to in-progress. t is only modified when every check passes.
func Start(ctx context.Context, t *models.Tournament, gen BracketGenerator) error {
	switch t.Status {
	case models.StatusCompleted:
		return ErrTournamentClosed
	case models.StatusInProgress:
		return ErrAlreadyStarted
	}
	if !t.Status.CanTransitionTo(models.StatusInProgress) {
		return fmt.Errorf("%w: unexpected status %q", ErrAlreadyStarted, t.Status)
	}
	if t.Bracket != nil {
		return fmt.Errorf("%w: bracket already built", ErrAlreadyStarted)
	}
	if len(t.Participants) < MinParticipants {
		return fmt.Errorf("%w: not enough participants (minimum %d required, found %d)",
			ErrInvalidInput, MinParticipants, len(t.Participants))
	}

	next := t.Clone()
	snapshot := append([]int(nil), t.Participants...)
	bracket, err := gen.GenerateBracket(ctx, GenerateBracketParams{Tournament: next, Participants: snapshot})
	if err != nil {
		return fmt.Errorf("failed to generate %s bracket: %w", gen.GetName(), err)
	}

	next.Bracket = bracket
	next.Status = models.StatusInProgress
	if champion, ok := bracket.Champion(); ok {
		complete(next, champion)
	}

	*t = *next
	return nil
}

// RecordResult stores winnerID as the winner of the addressed match, carries
// the winner into the next round and completes the tournament when the final
// is decided. A decided match is never overwritten.
func RecordResult(t *models.Tournament, round, match, winnerID int) (*Outcome, error) {
	switch t.Status {
	case models.StatusCompleted:
		return nil, ErrTournamentClosed
	case models.StatusInProgress:
	default:
		return nil, ErrNotInProgress
	}

	next := t.Clone()
	m, ok := next.Bracket.MatchAt(round, match)
	if !ok {
		return nil, fmt.Errorf("%w: round %d match %d does not exist", ErrInvalidMatch, round, match)
	}
	if m.IsDecided() {
		return nil, fmt.Errorf("%w: round %d match %d", ErrAlreadyDecided, round, match)
	}
	if !m.IsContested() {
		return nil, fmt.Errorf("%w: round %d match %d is still waiting for participants", ErrInvalidMatch, round, match)
	}
	if !m.HasPlayer(winnerID) {
		return nil, fmt.Errorf("%w: participant %d does not play in round %d match %d", ErrInvalidMatch, winnerID, round, match)
	}

	winner := winnerID
	next.Bracket[round][match].Winner = &winner
	outcome := &Outcome{Round: round, Match: match, WinnerID: winnerID}

	if round < len(next.Bracket)-1 {
		to := nextSlot(round, match)
		place(next.Bracket, to, models.PlayerSlot(winnerID))
		outcome.Advanced = &to
		outcome.AutoAdvanced = ResolveByes(next.Bracket)
	}

	if champion, ok := next.Bracket.Champion(); ok {
		complete(next, champion)
		outcome.Completed = true
		outcome.ChampionID = next.ChampionID
	}

	*t = *next
	return outcome, nil
}

func complete(t *models.Tournament, champion int) {
	if !t.Status.CanTransitionTo(models.StatusCompleted) {
		return
	}
	t.Status = models.StatusCompleted
	t.ChampionID = &champion
}
