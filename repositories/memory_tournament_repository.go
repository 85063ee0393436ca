package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/cue-tournaments/models"
)

type memoryTournamentRepository struct {
	mu          sync.RWMutex
	nextID      int
	tournaments map[int]*models.Tournament
	now         func() time.Time
}

// NewMemoryTournamentRepository keeps tournaments in process memory with the
// same version semantics as the postgres repository.
func NewMemoryTournamentRepository() TournamentRepository {
	return &memoryTournamentRepository{
		tournaments: make(map[int]*models.Tournament),
		now:         time.Now,
	}
}

func (r *memoryTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tournaments {
		if existing.Name == t.Name {
			return ErrTournamentNameConflict
		}
	}

	r.nextID++
	now := r.now().UTC()
	t.ID = r.nextID
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Participants == nil {
		t.Participants = models.ParticipantIDs{}
	}
	r.tournaments[t.ID] = t.Clone()
	return nil
}

func (r *memoryTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return t.Clone(), nil
}

func (r *memoryTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tournaments := make([]models.Tournament, 0, len(r.tournaments))
	for _, t := range r.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		tournaments = append(tournaments, *t.Clone())
	}

	sort.Slice(tournaments, func(i, j int) bool {
		if !tournaments[i].ScheduledAt.Equal(tournaments[j].ScheduledAt) {
			return tournaments[i].ScheduledAt.After(tournaments[j].ScheduledAt)
		}
		return tournaments[i].ID > tournaments[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(tournaments) {
			return []models.Tournament{}, nil
		}
		tournaments = tournaments[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(tournaments) {
		tournaments = tournaments[:filter.Limit]
	}
	return tournaments, nil
}

func (r *memoryTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tournaments[t.ID]
	if !ok {
		return ErrTournamentNotFound
	}
	if stored.Version != t.Version {
		return ErrVersionConflict
	}

	t.Version++
	t.UpdatedAt = r.now().UTC()
	r.tournaments[t.ID] = t.Clone()
	return nil
}
