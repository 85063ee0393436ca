package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/cue-tournaments/models"
	"github.com/Dosada05/cue-tournaments/repositories"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type CreateTournamentInput struct {
	Name        string    `json:"name"`
	Format      string    `json:"format"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type ListTournamentsInput struct {
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

type TournamentService interface {
	CreateTournament(ctx context.Context, creatorID int, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, input ListTournamentsInput) ([]models.Tournament, error)
	// AssignOfficial sets the tournament official. Only the creator or an
	// admin may assign, and the first assignment wins.
	AssignOfficial(ctx context.Context, tournamentID, officialID, callerID int) (*models.Tournament, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
	locks          *TournamentLocks
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	locks *TournamentLocks,
	logger *slog.Logger,
) TournamentService {
	if locks == nil {
		locks = NewTournamentLocks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
		locks:          locks,
		logger:         logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, creatorID int, input CreateTournamentInput) (*models.Tournament, error) {
	if _, err := s.requireOfficiatingUser(ctx, creatorID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	format := strings.TrimSpace(input.Format)
	switch {
	case name == "":
		return nil, ErrTournamentNameRequired
	case format == "":
		return nil, fmt.Errorf("%w: format is required", ErrValidationFailed)
	case input.ScheduledAt.IsZero():
		return nil, fmt.Errorf("%w: scheduled_at is required", ErrValidationFailed)
	}

	t := &models.Tournament{
		Name:         name,
		Format:       format,
		ScheduledAt:  input.ScheduledAt.UTC(),
		Status:       models.StatusOpen,
		CreatedBy:    &creatorID,
		Participants: models.ParticipantIDs{},
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.Info("tournament created", slog.Int("tournament_id", t.ID), slog.Int("creator_id", creatorID))
	return t, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, input ListTournamentsInput) ([]models.Tournament, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, *input.Status)
	}
	if input.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrValidationFailed)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{
		Status: input.Status,
		Limit:  limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *tournamentService) AssignOfficial(ctx context.Context, tournamentID, officialID, callerID int) (*models.Tournament, error) {
	caller, err := s.requireOfficiatingUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	official, err := s.userRepo.GetByID(ctx, officialID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if !official.Role.CanOfficiate() {
		return nil, ErrOfficialNotEligible
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := mutateTournament(ctx, s.tournamentRepo, tournamentID, nil, func(t *models.Tournament) error {
		// Назначать судью может только создатель турнира или админ
		isCreator := t.CreatedBy != nil && *t.CreatedBy == callerID
		if !isCreator && caller.Role != models.RoleAdmin {
			return ErrForbiddenOperation
		}
		if t.OfficialID != nil {
			return ErrOfficialAlreadyAssigned
		}
		id := officialID
		t.OfficialID = &id
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament official assigned",
		slog.Int("tournament_id", tournamentID),
		slog.Int("official_id", officialID),
		slog.Int("assigned_by", callerID))
	return t, nil
}

func (s *tournamentService) requireOfficiatingUser(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrForbiddenOperation
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if !user.Role.CanOfficiate() {
		return nil, ErrForbiddenOperation
	}
	return user, nil
}
