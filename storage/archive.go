package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/cue-tournaments/models"
	"github.com/google/uuid"
)

var ErrNotCompleted = errors.New("only completed tournaments can be archived")

// ArchivedBracket is the document written for every completed tournament.
type ArchivedBracket struct {
	TournamentID int                   `json:"tournament_id"`
	Name         string                `json:"name"`
	Format       string                `json:"format"`
	ScheduledAt  time.Time             `json:"scheduled_at"`
	ChampionID   int                   `json:"champion_id"`
	Participants models.ParticipantIDs `json:"participants"`
	Bracket      models.Bracket        `json:"bracket"`
	ArchivedAt   time.Time             `json:"archived_at"`
}

type BracketArchiver struct {
	store ObjectStore
	now   func() time.Time
}

func NewBracketArchiver(store ObjectStore) *BracketArchiver {
	return &BracketArchiver{store: store, now: time.Now}
}

// ArchiveKey builds a unique object key for one archive of a tournament.
func ArchiveKey(tournamentID int, id uuid.UUID) string {
	return fmt.Sprintf("brackets/tournament_%d/%s.json", tournamentID, id)
}

// Archive uploads the final bracket of t and returns where it was stored.
func (a *BracketArchiver) Archive(ctx context.Context, t *models.Tournament) (*UploadResult, error) {
	if t.Status != models.StatusCompleted || t.ChampionID == nil {
		return nil, fmt.Errorf("%w: tournament %d is %s", ErrNotCompleted, t.ID, t.Status)
	}

	doc := ArchivedBracket{
		TournamentID: t.ID,
		Name:         t.Name,
		Format:       t.Format,
		ScheduledAt:  t.ScheduledAt,
		ChampionID:   *t.ChampionID,
		Participants: t.Participants,
		Bracket:      t.Bracket,
		ArchivedAt:   a.now().UTC(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket archive for tournament %d: %w", t.ID, err)
	}

	result, err := a.store.Upload(ctx, ArchiveKey(t.ID, uuid.New()), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to archive bracket for tournament %d: %w", t.ID, err)
	}
	return result, nil
}
