package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/cue-tournaments/brackets"
	"github.com/Dosada05/cue-tournaments/metrics"
	"github.com/Dosada05/cue-tournaments/models"
	"github.com/Dosada05/cue-tournaments/repositories"
)

// ParticipantService is the registry of players entered into a tournament.
type ParticipantService interface {
	Register(ctx context.Context, tournamentID, userID int) error
	// Withdraw removes userID. Allowed for the player themselves or the official.
	Withdraw(ctx context.Context, tournamentID, userID, callerID int) error
	// List returns the participants in registration order.
	List(ctx context.Context, tournamentID int) ([]models.Participant, error)
}

type participantService struct {
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
	gate           OfficialGate
	locks          *TournamentLocks
	metrics        *metrics.Lifecycle
	logger         *slog.Logger
}

func NewParticipantService(
	tournamentRepo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	gate OfficialGate,
	locks *TournamentLocks,
	m *metrics.Lifecycle,
	logger *slog.Logger,
) ParticipantService {
	if gate == nil {
		gate = NewOfficialGate(tournamentRepo)
	}
	if locks == nil {
		locks = NewTournamentLocks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &participantService{
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
		gate:           gate,
		locks:          locks,
		metrics:        m,
		logger:         logger,
	}
}

func (s *participantService) Register(ctx context.Context, tournamentID, userID int) error {
	err := s.register(ctx, tournamentID, userID)
	s.metrics.ObserveOperation(metrics.OpRegister, err)
	if err != nil {
		return err
	}
	s.logger.Info("participant registered", slog.Int("tournament_id", tournamentID), slog.Int("user_id", userID))
	return nil
}

func (s *participantService) register(ctx context.Context, tournamentID, userID int) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return handleRepositoryError(err)
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	_, err := mutateTournament(ctx, s.tournamentRepo, tournamentID,
		func() { s.metrics.ObserveConflict(metrics.OpRegister) },
		func(t *models.Tournament) error {
			if t.Status != models.StatusOpen {
				return ErrRegistrationClosed
			}
			if t.HasParticipant(userID) {
				return ErrRegistrationConflict
			}
			if len(t.Participants) >= brackets.MaxParticipants {
				return fmt.Errorf("%w: limit is %d players", ErrTournamentFull, brackets.MaxParticipants)
			}
			t.Participants = append(t.Participants, userID)
			return nil
		})
	return err
}

func (s *participantService) Withdraw(ctx context.Context, tournamentID, userID, callerID int) error {
	err := s.withdraw(ctx, tournamentID, userID, callerID)
	s.metrics.ObserveOperation(metrics.OpWithdraw, err)
	if err != nil {
		return err
	}
	s.logger.Info("participant withdrawn",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", userID),
		slog.Int("caller_id", callerID))
	return nil
}

func (s *participantService) withdraw(ctx context.Context, tournamentID, userID, callerID int) error {
	if callerID != userID {
		if err := requireOfficial(ctx, s.gate, tournamentID, callerID); err != nil {
			return err
		}
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	_, err := mutateTournament(ctx, s.tournamentRepo, tournamentID,
		func() { s.metrics.ObserveConflict(metrics.OpWithdraw) },
		func(t *models.Tournament) error {
			if t.Status != models.StatusOpen {
				return ErrRegistrationClosed
			}
			remaining := make(models.ParticipantIDs, 0, len(t.Participants))
			for _, id := range t.Participants {
				if id != userID {
					remaining = append(remaining, id)
				}
			}
			if len(remaining) == len(t.Participants) {
				return ErrParticipantNotFound
			}
			t.Participants = remaining
			return nil
		})
	return err
}

func (s *participantService) List(ctx context.Context, tournamentID int) ([]models.Participant, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	users, err := s.userRepo.ListByIDs(ctx, t.Participants)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants of tournament %d: %w", tournamentID, err)
	}
	names := make(map[int]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	participants := make([]models.Participant, len(t.Participants))
	for i, id := range t.Participants {
		participants[i] = models.Participant{
			UserID:       id,
			TournamentID: tournamentID,
			Seed:         i + 1,
			Username:     names[id],
		}
	}
	return participants, nil
}
