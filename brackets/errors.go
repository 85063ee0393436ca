package brackets

import "errors"

// Bracket lifecycle errors. All of them leave the tournament untouched.
var (
	ErrInvalidInput     = errors.New("invalid bracket input")
	ErrInvalidMatch     = errors.New("invalid match")
	ErrAlreadyStarted   = errors.New("tournament has already started")
	ErrNotInProgress    = errors.New("tournament is not in progress")
	ErrAlreadyDecided   = errors.New("match already has a winner")
	ErrTournamentClosed = errors.New("tournament is completed")
)
