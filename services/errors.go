package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrValidationFailed = errors.New("validation failed")

	// Турниры и регистрация
	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentNameRequired  = errors.New("tournament name is required")
	ErrTournamentNameConflict  = errors.New("tournament name already exists")
	ErrRegistrationClosed      = errors.New("tournament registration is closed")
	ErrTournamentFull          = errors.New("tournament registration is full")
	ErrRegistrationConflict    = errors.New("user is already registered for this tournament")
	ErrParticipantNotFound     = errors.New("participant registration not found")
	ErrOfficialAlreadyAssigned = errors.New("tournament official is already assigned")
	ErrOfficialNotEligible     = errors.New("user cannot officiate tournaments")

	// Конкурентные изменения
	ErrConflict = errors.New("tournament was modified concurrently, please retry")

	// Аутентификация и авторизация
	ErrUserNotFound           = errors.New("user not found")
	ErrPasswordTooShort       = errors.New("password is too short")
	ErrAuthInvalidCredentials = errors.New("invalid username or password")
	ErrAuthUsernameTaken      = errors.New("username is already taken")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
)
