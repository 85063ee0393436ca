package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/cue-tournaments/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrTournamentInvalidUser  = errors.New("invalid official reference")
	// ErrVersionConflict means the tournament changed between load and update.
	ErrVersionConflict = errors.New("tournament was modified concurrently")
)

type ListTournamentsFilter struct {
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

// TournamentRepository persists the tournament aggregate as a single record.
// Update is a compare-and-swap on Version: it succeeds only when the stored
// version equals t.Version, and bumps t.Version on success.
type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, name, format, scheduled_at, status, official_id, created_by,
	participants, bracket, champion_id, version, created_at, updated_at`

func scanTournament(row interface{ Scan(dest ...interface{}) error }, t *models.Tournament) error {
	return row.Scan(
		&t.ID, &t.Name, &t.Format, &t.ScheduledAt, &t.Status, &t.OfficialID, &t.CreatedBy,
		&t.Participants, &t.Bracket, &t.ChampionID, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	if t.Participants == nil {
		t.Participants = models.ParticipantIDs{}
	}
	query := `
		INSERT INTO tournaments (name, format, scheduled_at, status, official_id, created_by, participants, bracket, champion_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, version, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Format, t.ScheduledAt, t.Status, t.OfficialID, t.CreatedBy, t.Participants, t.Bracket, t.ChampionID,
	).Scan(&t.ID, &t.Version, &t.CreatedAt, &t.UpdatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	err := scanTournament(r.db.QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY scheduled_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if err := scanTournament(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			format = $2,
			scheduled_at = $3,
			status = $4,
			official_id = $5,
			participants = $6,
			bracket = $7,
			champion_id = $8,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $9 AND version = $10
		RETURNING version, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Format, t.ScheduledAt, t.Status, t.OfficialID, t.Participants, t.Bracket, t.ChampionID,
		t.ID, t.Version,
	).Scan(&t.Version, &t.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if existsErr := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tournaments WHERE id = $1)`, t.ID).Scan(&exists); existsErr != nil {
			return fmt.Errorf("failed to check tournament %d after version mismatch: %w", t.ID, existsErr)
		}
		if !exists {
			return ErrTournamentNotFound
		}
		return ErrVersionConflict
	}
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "tournaments_name_key" {
				return ErrTournamentNameConflict
			}
		case "23503": // foreign_key_violation
			switch pqErr.Constraint {
			case "tournaments_official_id_fkey", "tournaments_champion_id_fkey", "tournaments_created_by_fkey":
				return ErrTournamentInvalidUser
			}
		}
	}
	return err
}
