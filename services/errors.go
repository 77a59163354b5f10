package services

import "errors"

// Shared errors, used across services and the HTTP mapping.
var (
	// Not found
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrMatchNotFound       = errors.New("match not found")

	// Validation and business rules
	ErrValidationFailed          = errors.New("validation failed")
	ErrTournamentNameRequired    = errors.New("tournament name is required")
	ErrTournamentDatesRequired   = errors.New("tournament dates are required")
	ErrTournamentInvalidDates    = errors.New("tournament dates must satisfy registration_deadline < start_time < end_time")
	ErrTournamentInvalidCapacity = errors.New("tournament capacity must satisfy 4 <= min <= max <= 64")
	ErrTournamentInvalidFormat   = errors.New("unsupported tournament format")
	ErrInvalidPrizeDistribution  = errors.New("prize distribution percentages must be positive and sum to at most 100")
	ErrInvalidWinner             = errors.New("winner must be one of the match players")
	ErrInvalidScore              = errors.New("match scores must not be negative")

	// Lifecycle state
	ErrInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrRegistrationNotOpen     = errors.New("tournament registration is not open")
	ErrRegistrationClosed      = errors.New("tournament registration deadline has passed")
	ErrTournamentNotStartable  = errors.New("tournament start time has not been reached")
	ErrMatchNotScheduled       = errors.New("match is not awaiting a result")

	// Registration
	ErrTournamentFull           = errors.New("tournament registration is full")
	ErrAlreadyRegistered        = errors.New("user is already registered for this tournament")
	ErrInsufficientParticipants = errors.New("tournament has not reached its minimum participant count")

	// Conflicts
	ErrVenueConflict = errors.New("venue is already booked for an overlapping tournament")
)
