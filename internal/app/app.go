package app

import (
	"errors"

	"github.com/calendarapp/calendar/internal/storage"
)

var (
	ErrIncorrectTitle     = errors.New("title must be between 3 and 255 characters")
	ErrIncorrectEventTime = errors.New("event end time must not be before start time")
	ErrStartTimeInPast    = errors.New("event start time must be in the future")
	ErrPermissionDenied   = errors.New("operation is allowed to the event owner only")
)

type Config struct {
	// Reject events starting in the past. Off by default.
	RequireFutureStart bool
}

type App struct {
	Storage storage.Storage
	config  Config
}

func New(storage storage.Storage, config Config) *App {
	return &App{Storage: storage, config: config}
}
