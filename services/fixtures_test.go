package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/cue-tournaments/metrics"
	"github.com/Dosada05/cue-tournaments/models"
	"github.com/Dosada05/cue-tournaments/repositories"
	"github.com/Dosada05/cue-tournaments/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) NotifyTournament(tournamentID int, messageType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, messageType)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// conflictingRepo fails the next `failures` updates with a version conflict.
// While updateErr is set every update fails with it instead.
type conflictingRepo struct {
	repositories.TournamentRepository
	mu        sync.Mutex
	failures  int
	updates   int
	updateErr error
}

func (r *conflictingRepo) Update(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	r.updates++
	if r.updateErr != nil {
		err := r.updateErr
		r.mu.Unlock()
		return err
	}
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return repositories.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.TournamentRepository.Update(ctx, t)
}

func (r *conflictingRepo) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateErr = err
}

type fixture struct {
	ctx          context.Context
	tournaments  *conflictingRepo
	users        repositories.UserRepository
	notifier     *recordingNotifier
	store        *storage.MemoryStore
	bracket      BracketService
	participants ParticipantService
	tournament   TournamentService
	officialID   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:         context.Background(),
		tournaments: &conflictingRepo{TournamentRepository: repositories.NewMemoryTournamentRepository()},
		users:       repositories.NewMemoryUserRepository(),
		notifier:    &recordingNotifier{},
		store:       storage.NewMemoryStore(),
	}

	locks := NewTournamentLocks()
	gate := NewOfficialGate(f.tournaments)
	lifecycle := metrics.NewLifecycle(prometheus.NewRegistry())

	f.bracket = NewBracketService(BracketServiceDeps{
		TournamentRepo: f.tournaments,
		UserRepo:       f.users,
		Gate:           gate,
		Locks:          locks,
		Notifier:       f.notifier,
		Archiver:       storage.NewBracketArchiver(f.store),
		Metrics:        lifecycle,
	})
	f.participants = NewParticipantService(f.tournaments, f.users, gate, locks, lifecycle, nil)
	f.tournament = NewTournamentService(f.tournaments, f.users, locks, nil)
	f.officialID = f.createUser(t, "referee", models.RoleOfficial)
	return f
}

func (f *fixture) createUser(t *testing.T, username string, role models.UserRole) int {
	t.Helper()
	u := &models.User{Username: username, Role: role, PasswordHash: "x"}
	require.NoError(t, f.users.Create(f.ctx, u))
	return u.ID
}

// openTournament creates a tournament with an assigned official and n
// registered players, returned in registration order.
func (f *fixture) openTournament(t *testing.T, n int) (int, []int) {
	t.Helper()

	tournament, err := f.tournament.CreateTournament(f.ctx, f.officialID, CreateTournamentInput{
		Name:        fmt.Sprintf("cup-%d-%d", n, time.Now().UnixNano()),
		Format:      "8-ball",
		ScheduledAt: time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = f.tournament.AssignOfficial(f.ctx, tournament.ID, f.officialID, f.officialID)
	require.NoError(t, err)

	players := make([]int, n)
	for i := range players {
		players[i] = f.createUser(t, fmt.Sprintf("t%d-player-%d", tournament.ID, i), models.RolePlayer)
		require.NoError(t, f.participants.Register(f.ctx, tournament.ID, players[i]))
	}
	return tournament.ID, players
}

func (f *fixture) startedTournament(t *testing.T, n int) (int, []int) {
	t.Helper()
	id, players := f.openTournament(t, n)
	_, err := f.bracket.Start(f.ctx, id, f.officialID)
	require.NoError(t, err)
	return id, players
}
