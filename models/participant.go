package models

// Participant is a registry entry enriched with the user's public profile.
type Participant struct {
	UserID       int    `json:"user_id"`
	TournamentID int    `json:"tournament_id"`
	Seed         int    `json:"seed"` // 1-based registration position
	Username     string `json:"username,omitempty"`
}
