package brackets

import (
	"context"

	"github.com/Dosada05/cue-tournaments/models"
)

type GenerateBracketParams struct {
	Tournament   *models.Tournament
	Participants []int
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (models.Bracket, error)

	GetName() string
}
