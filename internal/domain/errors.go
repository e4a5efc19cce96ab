package domain

import "errors"

// Domain errors
var (
	ErrNameTaken        = errors.New("name already exists in room")
	ErrRoomNotFound     = errors.New("room not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrBadRoomCode      = errors.New("invalid room code format")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrInvalidState     = errors.New("invalid session state for command")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInternalError    = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrQuestionNotFound)
}
