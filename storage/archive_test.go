package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Dosada05/cue-tournaments/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedTournament() *models.Tournament {
	champion := 2
	return &models.Tournament{
		ID:           4,
		Name:         "Friday 9-ball",
		Format:       "9-ball",
		Status:       models.StatusCompleted,
		Participants: models.ParticipantIDs{1, 2},
		Bracket: models.Bracket{
			{{Player1: models.PlayerSlot(1), Player2: models.PlayerSlot(2), Winner: &champion}},
		},
		ChampionID: &champion,
	}
}

func TestBracketArchiverUploadsFinalBracket(t *testing.T) {
	store := NewMemoryStore()
	archiver := NewBracketArchiver(store)

	result, err := archiver.Archive(context.Background(), completedTournament())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Key, "brackets/tournament_4/"))
	assert.True(t, strings.HasSuffix(result.Key, ".json"))
	assert.Equal(t, "memory://"+result.Key, result.Location)

	data, ok := store.Object(result.Key)
	require.True(t, ok)

	var doc ArchivedBracket
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 4, doc.TournamentID)
	assert.Equal(t, 2, doc.ChampionID)
	assert.Equal(t, completedTournament().Bracket, doc.Bracket)
}

func TestBracketArchiverUsesUniqueKeys(t *testing.T) {
	store := NewMemoryStore()
	archiver := NewBracketArchiver(store)

	first, err := archiver.Archive(context.Background(), completedTournament())
	require.NoError(t, err)
	second, err := archiver.Archive(context.Background(), completedTournament())
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.Len(t, store.Keys(), 2)
}

func TestBracketArchiverRejectsUnfinishedTournament(t *testing.T) {
	tournament := completedTournament()
	tournament.Status = models.StatusInProgress
	tournament.ChampionID = nil

	_, err := NewBracketArchiver(NewMemoryStore()).Archive(context.Background(), tournament)
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestArchiveKey(t *testing.T) {
	id := uuid.MustParse("6f1c2a8e-5b0d-4a53-9f55-2d0c2b9a7e11")
	assert.Equal(t, "brackets/tournament_12/6f1c2a8e-5b0d-4a53-9f55-2d0c2b9a7e11.json", ArchiveKey(12, id))
}

func TestPublicURL(t *testing.T) {
	testCases := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "brackets/a.json", "https://cdn.example.com/brackets/a.json"},
		{"https://cdn.example.com/archive/", "/brackets/a.json", "https://cdn.example.com/archive/brackets/a.json"},
		{"https://cdn.example.com/archive", "brackets/a.json", "https://cdn.example.com/archive/brackets/a.json"},
		{"", "brackets/a.json", ""},
		{"https://cdn.example.com", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.base+"|"+tc.key, func(t *testing.T) {
			assert.Equal(t, tc.want, publicURL(tc.base, tc.key))
		})
	}
}
