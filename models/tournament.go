package models

import "time"

// TournamentStatus представляет статус турнира, хранится в БД как строка.
type TournamentStatus string

const (
	StatusOpen       TournamentStatus = "open"
	StatusInProgress TournamentStatus = "in_progress"
	StatusCompleted  TournamentStatus = "completed"
)

// statusTransitions is the only set of allowed lifecycle moves.
var statusTransitions = map[TournamentStatus]TournamentStatus{
	StatusOpen:       StatusInProgress,
	StatusInProgress: StatusCompleted,
}

func (s TournamentStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is the single status that may follow s.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	allowed, ok := statusTransitions[s]
	return ok && allowed == next
}

// Tournament is the versioned aggregate persisted as one record.
type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Format      string           `json:"format" db:"format"`
	ScheduledAt time.Time        `json:"scheduled_at" db:"scheduled_at"`
	Status      TournamentStatus `json:"status" db:"status"`
	OfficialID  *int             `json:"official_id,omitempty" db:"official_id"`
	// CreatedBy is nil only for rows that predate creator tracking.
	CreatedBy *int `json:"created_by,omitempty" db:"created_by"`

	// Participants holds user IDs in registration order.
	Participants ParticipantIDs `json:"participants" db:"participants"`
	Bracket      Bracket        `json:"bracket,omitempty" db:"bracket"`
	ChampionID   *int           `json:"champion_id,omitempty" db:"champion_id"`

	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasParticipant reports whether userID is registered.
func (t *Tournament) HasParticipant(userID int) bool {
	for _, id := range t.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so a mutation can be computed without touching t.
func (t *Tournament) Clone() *Tournament {
	if t == nil {
		return nil
	}
	c := *t
	if t.OfficialID != nil {
		v := *t.OfficialID
		c.OfficialID = &v
	}
	if t.ChampionID != nil {
		v := *t.ChampionID
		c.ChampionID = &v
	}
	if t.CreatedBy != nil {
		v := *t.CreatedBy
		c.CreatedBy = &v
	}
	if t.Participants != nil {
		c.Participants = make(ParticipantIDs, len(t.Participants))
		copy(c.Participants, t.Participants)
	}
	c.Bracket = t.Bracket.Clone()
	return &c
}
