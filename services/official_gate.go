package services

import (
	"context"

	"github.com/Dosada05/cue-tournaments/repositories"
)

// OfficialGate decides whether a caller is the assigned official of a tournament.
type OfficialGate interface {
	IsOfficial(ctx context.Context, tournamentID, callerID int) (bool, error)
}

type tournamentOfficialGate struct {
	tournamentRepo repositories.TournamentRepository
}

func NewOfficialGate(tournamentRepo repositories.TournamentRepository) OfficialGate {
	return &tournamentOfficialGate{tournamentRepo: tournamentRepo}
}

func (g *tournamentOfficialGate) IsOfficial(ctx context.Context, tournamentID, callerID int) (bool, error) {
	t, err := g.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return false, handleRepositoryError(err)
	}
	return t.OfficialID != nil && *t.OfficialID == callerID, nil
}

// requireOfficial returns ErrForbiddenOperation unless callerID is the official.
func requireOfficial(ctx context.Context, gate OfficialGate, tournamentID, callerID int) error {
	ok, err := gate.IsOfficial(ctx, tournamentID, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbiddenOperation
	}
	return nil
}
