package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calendarapp/calendar/internal/storage"
	log "github.com/sirupsen/logrus"
)

const (
	minTitleLength = 3
	maxTitleLength = 255
)

func (a *App) validateEvent(e storage.Event) error {
	if len(e.Title) < minTitleLength || len(e.Title) > maxTitleLength {
		return ErrIncorrectTitle
	}
	if e.EndTime.Before(e.StartTime) {
		return ErrIncorrectEventTime
	}
	if a.config.RequireFutureStart && e.StartTime.Before(time.Now()) {
		return ErrStartTimeInPast
	}
	return nil
}

// CreateEvent persists the event and registers its owner as an accepted
// attendee with the Owner role.
func (a *App) CreateEvent(ctx context.Context, e storage.Event) (storage.Event, error) {
	if err := a.validateEvent(e); err != nil {
		return storage.Event{}, err
	}
	if e.Status == "" {
		e.Status = storage.EventConfirmed
	}

	if err := a.Storage.AddEvent(ctx, &e); err != nil {
		return storage.Event{}, err
	}
	owner := storage.EventAttendee{
		EventID: e.ID,
		UserID:  e.OwnerID,
		Role:    storage.RoleOwner,
		Status:  storage.AttendeeAccepted,
	}
	if err := a.Storage.AddAttendee(ctx, &owner); err != nil {
		return storage.Event{}, fmt.Errorf("failed to add owner attendee: %w", err)
	}
	return a.Storage.GetEvent(ctx, e.ID)
}

func (a *App) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	return a.Storage.GetEvent(ctx, id)
}

func (a *App) ListEvents(ctx context.Context) ([]storage.Event, error) {
	return a.Storage.ListEvents(ctx)
}

// UpdateEvent overwrites the mutable fields of an existing event. The owner
// and the attendee list are never touched. Unknown id is a silent no-op.
func (a *App) UpdateEvent(ctx context.Context, actorID string, id string, e storage.Event) error {
	if err := a.validateEvent(e); err != nil {
		return err
	}

	existing, err := a.Storage.GetEvent(ctx, id)
	if errors.Is(err, storage.ErrNotFoundEvent) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.OwnerID != actorID {
		return ErrPermissionDenied
	}

	if err := a.Storage.UpdateEvent(ctx, id, e); err != nil {
		if errors.Is(err, storage.ErrNotFoundEvent) {
			return nil
		}
		return err
	}

	a.notifyAttendees(ctx, existing, fmt.Sprintf("Event '%s' was updated", e.Title))
	return nil
}

func (a *App) DeleteEvent(ctx context.Context, actorID string, id string) (bool, error) {
	e, err := a.Storage.GetEvent(ctx, id)
	if errors.Is(err, storage.ErrNotFoundEvent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if e.OwnerID != actorID {
		return false, ErrPermissionDenied
	}
	return a.Storage.RemoveEvent(ctx, id)
}

// InviteUsers adds each user as an Invited participant and leaves an
// EventInvite notification for them. Users already on the attendee list are
// skipped, so repeating an invite changes nothing.
func (a *App) InviteUsers(ctx context.Context, actorID string, eventID string, userIDs []string) error {
	e, err := a.Storage.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if e.OwnerID != actorID {
		return ErrPermissionDenied
	}

	attending := make(map[string]struct{}, len(e.Attendees))
	for _, attendee := range e.Attendees {
		attending[attendee.UserID] = struct{}{}
	}

	ownerName := "Someone"
	if e.Owner != nil {
		ownerName = e.Owner.Username
	}

	for _, userID := range userIDs {
		if _, ok := attending[userID]; ok {
			continue
		}
		attendee := storage.EventAttendee{
			EventID: eventID,
			UserID:  userID,
			Role:    storage.RoleParticipant,
			Status:  storage.AttendeeInvited,
		}
		err := a.Storage.AddAttendee(ctx, &attendee)
		if errors.Is(err, storage.ErrDuplicateAttendee) {
			continue
		}
		if err != nil {
			return err
		}
		attending[userID] = struct{}{}

		now := time.Now().UTC()
		notification := storage.Notification{
			UserID:   userID,
			EventID:  &e.ID,
			Type:     storage.TypeEventInvite,
			Message:  fmt.Sprintf("%s invited you to '%s'", ownerName, e.Title),
			NotifyAt: &now,
		}
		if err := a.Storage.AddNotification(ctx, &notification); err != nil {
			return err
		}
	}
	return nil
}

// RemoveAttendee removes the (event,user) membership row. The Owner row is
// protected and removal of it reports false.
func (a *App) RemoveAttendee(ctx context.Context, actorID string, eventID string, userID string) (bool, error) {
	e, err := a.Storage.GetEvent(ctx, eventID)
	if errors.Is(err, storage.ErrNotFoundEvent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if e.OwnerID != actorID && actorID != userID {
		return false, ErrPermissionDenied
	}
	return a.Storage.RemoveAttendee(ctx, eventID, userID)
}

func (a *App) FindUsersByEmails(ctx context.Context, emails []string) ([]storage.User, error) {
	return a.Storage.FindUsersByEmails(ctx, emails)
}

// Best-effort EventUpdate notifications for everyone except the owner.
func (a *App) notifyAttendees(ctx context.Context, e storage.Event, message string) {
	for _, attendee := range e.Attendees {
		if attendee.UserID == e.OwnerID {
			continue
		}
		notification := storage.Notification{
			UserID:  attendee.UserID,
			EventID: &e.ID,
			Type:    storage.TypeEventUpdate,
			Message: message,
		}
		if err := a.Storage.AddNotification(ctx, &notification); err != nil {
			log.Errorf("failed to notify attendee %q of event %q: %v", attendee.UserID, e.ID, err)
		}
	}
}
