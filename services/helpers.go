package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Dosada05/cue-tournaments/models"
	"github.com/Dosada05/cue-tournaments/repositories"
)

// maxCommitAttempts bounds the reload-and-retry loop on version conflicts.
const maxCommitAttempts = 3

// TournamentLocks serializes work on one tournament inside the process.
// Locks for different tournaments are independent. Services that mutate the
// same tournaments should share one instance.
type TournamentLocks struct {
	mu    sync.Mutex
	locks map[int]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewTournamentLocks() *TournamentLocks {
	return &TournamentLocks{locks: make(map[int]*lockEntry)}
}

// Lock blocks until the tournament is free and returns the matching unlock.
func (l *TournamentLocks) Lock(tournamentID int) func() {
	l.mu.Lock()
	e, ok := l.locks[tournamentID]
	if !ok {
		e = &lockEntry{}
		l.locks[tournamentID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, tournamentID)
		}
		l.mu.Unlock()
	}
}

// mutateTournament loads the tournament, applies mutate to it and commits
// with the repository version check. A version conflict reloads and applies
// mutate again from scratch. Errors returned by mutate abort without writing.
func mutateTournament(
	ctx context.Context,
	repo repositories.TournamentRepository,
	tournamentID int,
	onConflict func(),
	mutate func(t *models.Tournament) error,
) (*models.Tournament, error) {
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t, err := repo.GetByID(ctx, tournamentID)
		if err != nil {
			return nil, handleRepositoryError(err)
		}
		if err := mutate(t); err != nil {
			return nil, err
		}

		err = repo.Update(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return nil, handleRepositoryError(err)
		}
		if onConflict != nil {
			onConflict()
		}
	}
	return nil, fmt.Errorf("%w: tournament %d after %d attempts", ErrConflict, tournamentID, maxCommitAttempts)
}

// handleRepositoryError translates repository errors into service errors.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrUsernameTaken):
		return ErrAuthUsernameTaken
	case errors.Is(err, repositories.ErrTournamentInvalidUser):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	case errors.Is(err, repositories.ErrVersionConflict):
		return ErrConflict
	}
	return err
}
