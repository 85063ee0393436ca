package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/cue-tournaments/brackets"
	"github.com/Dosada05/cue-tournaments/metrics"
	"github.com/Dosada05/cue-tournaments/models"
	"github.com/Dosada05/cue-tournaments/repositories"
	"github.com/Dosada05/cue-tournaments/storage"
	"golang.org/x/sync/errgroup"
)

const archiveTimeout = 15 * time.Second

// TournamentNotifier pushes live updates to viewers of a tournament.
type TournamentNotifier interface {
	NotifyTournament(tournamentID int, messageType string, payload interface{})
}

// BracketArchiver stores the final bracket of a completed tournament.
type BracketArchiver interface {
	Archive(ctx context.Context, t *models.Tournament) (*storage.UploadResult, error)
}

// BracketView is what viewers get for a tournament: the registered players
// while it is open, the bracket once it has started.
type BracketView struct {
	TournamentID int                     `json:"tournament_id"`
	Status       models.TournamentStatus `json:"status"`
	Participants []models.Participant    `json:"participants,omitempty"`
	Bracket      models.Bracket          `json:"bracket,omitempty"`
	ChampionID   *int                    `json:"champion_id,omitempty"`
	Players      map[int]string          `json:"players"`
	Official     *models.User            `json:"official,omitempty"`
}

type MatchUpdatedPayload struct {
	TournamentID int               `json:"tournament_id"`
	Outcome      *brackets.Outcome `json:"outcome"`
	Bracket      models.Bracket    `json:"bracket"`
}

type TournamentCompletedPayload struct {
	TournamentID int `json:"tournament_id"`
	ChampionID   int `json:"champion_id"`
}

type BracketService interface {
	Start(ctx context.Context, tournamentID, callerID int) (*models.Tournament, error)
	RecordMatchResult(ctx context.Context, tournamentID, round, match, winnerID, callerID int) (*brackets.Outcome, error)
	GetBracket(ctx context.Context, tournamentID int) (*BracketView, error)
}

type BracketServiceDeps struct {
	TournamentRepo repositories.TournamentRepository
	UserRepo       repositories.UserRepository
	Gate           OfficialGate
	Locks          *TournamentLocks
	Notifier       TournamentNotifier
	Archiver       BracketArchiver
	Metrics        *metrics.Lifecycle
	Logger         *slog.Logger
}

type bracketService struct {
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
	gate           OfficialGate
	generator      brackets.BracketGenerator
	locks          *TournamentLocks
	notifier       TournamentNotifier
	archiver       BracketArchiver
	metrics        *metrics.Lifecycle
	logger         *slog.Logger
}

func NewBracketService(deps BracketServiceDeps) BracketService {
	s := &bracketService{
		tournamentRepo: deps.TournamentRepo,
		userRepo:       deps.UserRepo,
		gate:           deps.Gate,
		generator:      brackets.NewSingleEliminationGenerator(),
		locks:          deps.Locks,
		notifier:       deps.Notifier,
		archiver:       deps.Archiver,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
	}
	if s.gate == nil {
		s.gate = NewOfficialGate(deps.TournamentRepo)
	}
	if s.locks == nil {
		s.locks = NewTournamentLocks()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *bracketService) Start(ctx context.Context, tournamentID, callerID int) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.start(ctx, tournamentID, callerID)
	s.metrics.ObserveOperation(metrics.OpStart, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament started",
		slog.Int("tournament_id", t.ID),
		slog.Int("participants", len(t.Participants)),
		slog.Int("rounds", len(t.Bracket)))
	s.notify(t.ID, brackets.MessageBracketStarted, t)
	if t.Status == models.StatusCompleted {
		s.finish(ctx, t)
	}
	return t, nil
}

func (s *bracketService) start(ctx context.Context, tournamentID, callerID int) (*models.Tournament, error) {
	if err := requireOfficial(ctx, s.gate, tournamentID, callerID); err != nil {
		return nil, err
	}
	return mutateTournament(ctx, s.tournamentRepo, tournamentID,
		func() { s.metrics.ObserveConflict(metrics.OpStart) },
		func(t *models.Tournament) error {
			if err := brackets.Start(ctx, t, s.generator); err != nil {
				return fmt.Errorf("failed to start tournament %d: %w", tournamentID, err)
			}
			return nil
		})
}

func (s *bracketService) RecordMatchResult(ctx context.Context, tournamentID, round, match, winnerID, callerID int) (*brackets.Outcome, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var outcome *brackets.Outcome
	t, err := s.recordMatchResult(ctx, tournamentID, callerID, func(t *models.Tournament) error {
		o, err := brackets.RecordResult(t, round, match, winnerID)
		if err != nil {
			return fmt.Errorf("failed to record result for tournament %d round %d match %d: %w", tournamentID, round, match, err)
		}
		outcome = o
		return nil
	})
	s.metrics.ObserveOperation(metrics.OpRecordResult, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("match result recorded",
		slog.Int("tournament_id", tournamentID),
		slog.Int("round", round),
		slog.Int("match", match),
		slog.Int("winner_id", winnerID),
		slog.Bool("completed", outcome.Completed))
	s.notify(tournamentID, brackets.MessageMatchUpdated, MatchUpdatedPayload{
		TournamentID: tournamentID,
		Outcome:      outcome,
		Bracket:      t.Bracket,
	})
	if outcome.Completed {
		s.finish(ctx, t)
	}
	return outcome, nil
}

func (s *bracketService) recordMatchResult(ctx context.Context, tournamentID, callerID int, mutate func(t *models.Tournament) error) (*models.Tournament, error) {
	if err := requireOfficial(ctx, s.gate, tournamentID, callerID); err != nil {
		return nil, err
	}
	return mutateTournament(ctx, s.tournamentRepo, tournamentID,
		func() { s.metrics.ObserveConflict(metrics.OpRecordResult) },
		mutate)
}

// finish announces the champion and archives the final bracket. The
// tournament is already committed, so failures here are only logged.
func (s *bracketService) finish(ctx context.Context, t *models.Tournament) {
	s.metrics.ObserveCompletion()
	if t.ChampionID != nil {
		s.logger.Info("tournament completed", slog.Int("tournament_id", t.ID), slog.Int("champion_id", *t.ChampionID))
		s.notify(t.ID, brackets.MessageTournamentCompleted, TournamentCompletedPayload{
			TournamentID: t.ID,
			ChampionID:   *t.ChampionID,
		})
	}

	if s.archiver == nil {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	result, err := s.archiver.Archive(archiveCtx, t)
	s.metrics.ObserveArchive(err)
	if err != nil {
		s.logger.Error("failed to archive bracket", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	s.logger.Info("bracket archived", slog.Int("tournament_id", t.ID), slog.String("key", result.Key))
}

func (s *bracketService) notify(tournamentID int, messageType string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyTournament(tournamentID, messageType, payload)
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	view := &BracketView{
		TournamentID: t.ID,
		Status:       t.Status,
		ChampionID:   t.ChampionID,
		Players:      make(map[int]string, len(t.Participants)),
	}
	if t.Status == models.StatusOpen {
		view.Participants = make([]models.Participant, len(t.Participants))
		for i, id := range t.Participants {
			view.Participants[i] = models.Participant{UserID: id, TournamentID: t.ID, Seed: i + 1}
		}
	} else {
		view.Bracket = t.Bracket
	}

	if s.userRepo == nil {
		return view, nil
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		users, err := s.userRepo.ListByIDs(gCtx, t.Participants)
		if err != nil {
			return fmt.Errorf("failed to load players of tournament %d: %w", t.ID, err)
		}
		for _, u := range users {
			view.Players[u.ID] = u.Username
		}
		return nil
	})

	if t.OfficialID != nil {
		officialID := *t.OfficialID
		g.Go(func() error {
			official, err := s.userRepo.GetByID(gCtx, officialID)
			if err != nil {
				if errors.Is(err, repositories.ErrUserNotFound) {
					return nil
				}
				return fmt.Errorf("failed to load official of tournament %d: %w", t.ID, err)
			}
			official.PasswordHash = ""
			view.Official = official
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range view.Participants {
		view.Participants[i].Username = view.Players[view.Participants[i].UserID]
	}
	return view, nil
}
