package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFoundEvent        = errors.New("event not found")
	ErrNotFoundUser         = errors.New("user not found")
	ErrNotFoundAttendee     = errors.New("attendee not found")
	ErrNotFoundNotification = errors.New("notification not found")
	ErrDuplicateID          = errors.New("record with same ID exists")
	ErrDuplicateUser        = errors.New("username or email already registered")
	ErrDuplicateAttendee    = errors.New("user is already an attendee of the event")
)

type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	AddUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	FindUsersByEmails(ctx context.Context, emails []string) ([]User, error)
	RemoveUser(ctx context.Context, id string) (bool, error)

	AddEvent(ctx context.Context, e *Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	UpdateEvent(ctx context.Context, id string, e Event) error
	RemoveEvent(ctx context.Context, id string) (bool, error)
	EventsWithReminderBetween(ctx context.Context, from time.Time, to time.Time) ([]Event, error)

	AddAttendee(ctx context.Context, a *EventAttendee) error
	GetAttendee(ctx context.Context, eventID string, userID string) (EventAttendee, error)
	UpdateAttendeeStatus(ctx context.Context, eventID string, userID string, status AttendeeStatus) error
	RemoveAttendee(ctx context.Context, eventID string, userID string) (bool, error)

	AddNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id string) (Notification, error)
	NotificationsForUser(ctx context.Context, userID string) ([]Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, id string) (bool, error)
}
