package app

import (
	"context"
	"errors"

	"github.com/calendarapp/calendar/internal/storage"
	log "github.com/sirupsen/logrus"
)

// ListNotifications returns the user's notifications, newest first, each
// with its associated event aggregate resolved.
func (a *App) ListNotifications(ctx context.Context, userID string) ([]storage.Notification, error) {
	return a.Storage.NotificationsForUser(ctx, userID)
}

func (a *App) UnreadCount(ctx context.Context, userID string) (int, error) {
	return a.Storage.UnreadCount(ctx, userID)
}

func (a *App) MarkRead(ctx context.Context, notificationID string) (bool, error) {
	return a.Storage.MarkNotificationRead(ctx, notificationID)
}

// AcceptInvitation moves the paired attendee row to Accepted and marks the
// invitation read.
func (a *App) AcceptInvitation(ctx context.Context, notificationID string, userID string) (bool, error) {
	return a.resolveInvitation(ctx, notificationID, userID, storage.AttendeeAccepted)
}

// DeclineInvitation moves the paired attendee row to Declined and marks the
// invitation read.
func (a *App) DeclineInvitation(ctx context.Context, notificationID string, userID string) (bool, error) {
	return a.resolveInvitation(ctx, notificationID, userID, storage.AttendeeDeclined)
}

// The attendee update is best-effort: a missing row still leaves the
// notification read.
func (a *App) resolveInvitation(
	ctx context.Context,
	notificationID string,
	userID string,
	status storage.AttendeeStatus,
) (bool, error) {
	n, err := a.Storage.GetNotification(ctx, notificationID)
	if errors.Is(err, storage.ErrNotFoundNotification) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if n.UserID != userID || n.EventID == nil {
		return false, nil
	}

	err = a.Storage.UpdateAttendeeStatus(ctx, *n.EventID, userID, status)
	if err != nil && !errors.Is(err, storage.ErrNotFoundAttendee) {
		return false, err
	}
	if errors.Is(err, storage.ErrNotFoundAttendee) {
		log.Warnf("no attendee (%q,%q) for invitation %q", *n.EventID, userID, notificationID)
	}

	return a.Storage.MarkNotificationRead(ctx, notificationID)
}
