package domain

import "errors"

// Domain errors
var (
	ErrInvalidMode       = errors.New("invalid scoring mode")
	ErrEventNotFound     = errors.New("event not found")
	ErrBoardgameNotFound = errors.New("boardgame not found")
	ErrLocationNotFound  = errors.New("location not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrGameNotFound      = errors.New("game not found")
	ErrPositionNotFound  = errors.New("player position not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInternalError     = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrBoardgameNotFound) ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrGameNotFound) ||
		errors.Is(err, ErrPositionNotFound)
}
