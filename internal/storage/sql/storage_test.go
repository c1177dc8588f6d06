//go:build sql
// +build sql

package sqlstorage_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/calendarapp/calendar/internal/storage"
	sqlstorage "github.com/calendarapp/calendar/internal/storage/sql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var (
	host     = "127.0.0.1"
	port     = 5432
	database = "testing"
	username = "postgres"
	password = "pas"
)

func TestMain(m *testing.M) {
	pgHost := os.Getenv("POSTGRES_HOST")
	pgPort := os.Getenv("POSTGRES_PORT")
	if pgHost != "" {
		host = pgHost
	}
	if pgPort != "" {
		port, _ = strconv.Atoi(pgPort)
	}

	cleanupDB()
	code := m.Run()
	os.Exit(code)
}

func cleanupDB() {
	db, err := sqlx.Connect(
		"postgres",
		fmt.Sprintf("sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			host, port, database, username, password),
	)
	if err != nil {
		fmt.Printf("failed to connect for cleanup: %v\n", err)
		os.Exit(-1)
	}
	defer db.Close()
	db.MustExec("TRUNCATE Notifications, EventAttendees, Events, Users")
}

func createStorage(t *testing.T) *sqlstorage.Storage {
	t.Helper()
	s := sqlstorage.New(sqlstorage.Config{
		Host:     host,
		Port:     port,
		Database: database,
		Username: username,
		Password: password,
	})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, s.Close(context.Background()))
	})
	return s
}

func createUser(t *testing.T, s *sqlstorage.Storage, username string) storage.User {
	t.Helper()
	u := storage.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: "user"}
	require.NoError(t, s.AddUser(context.Background(), &u))
	require.NotEmpty(t, u.ID)
	return u
}

func createEvent(t *testing.T, s *sqlstorage.Storage, ownerID string, title string) storage.Event {
	t.Helper()
	start := time.Date(2300, 1, 1, 9, 0, 0, 0, time.UTC)
	e := storage.Event{
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    storage.EventConfirmed,
		OwnerID:   ownerID,
	}
	require.NoError(t, s.AddEvent(context.Background(), &e))
	require.NotEmpty(t, e.ID)
	return e
}

func TestStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("user uniqueness", func(t *testing.T) {
		s := createStorage(t)
		createUser(t, s, "sql-alice")

		err := s.AddUser(ctx, &storage.User{Username: "sql-alice", Email: "sql-other@example.com", PasswordHash: "x"})
		require.ErrorIs(t, err, storage.ErrDuplicateUser)
	})

	t.Run("find users by emails", func(t *testing.T) {
		s := createStorage(t)
		bob := createUser(t, s, "sql-bob")
		createUser(t, s, "sql-carol")

		users, err := s.FindUsersByEmails(ctx, []string{"sql-bob@example.com", "missing@example.com"})
		require.NoError(t, err)
		require.Len(t, users, 1)
		require.Equal(t, bob.ID, users[0].ID)
	})

	t.Run("event aggregate", func(t *testing.T) {
		s := createStorage(t)
		owner := createUser(t, s, "sql-dave")
		invitee := createUser(t, s, "sql-erin")
		e := createEvent(t, s, owner.ID, "Standup")

		require.NoError(t, s.AddAttendee(ctx, &storage.EventAttendee{
			EventID: e.ID, UserID: owner.ID, Role: storage.RoleOwner, Status: storage.AttendeeAccepted,
		}))
		require.NoError(t, s.AddAttendee(ctx, &storage.EventAttendee{
			EventID: e.ID, UserID: invitee.ID, Role: storage.RoleParticipant, Status: storage.AttendeeInvited,
		}))
		err := s.AddAttendee(ctx, &storage.EventAttendee{EventID: e.ID, UserID: invitee.ID})
		require.ErrorIs(t, err, storage.ErrDuplicateAttendee)

		got, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Owner)
		require.Equal(t, owner.ID, got.Owner.ID)
		require.Len(t, got.Attendees, 2)
		for _, attendee := range got.Attendees {
			require.NotNil(t, attendee.User)
		}
	})

	t.Run("owner attendee protected", func(t *testing.T) {
		s := createStorage(t)
		owner := createUser(t, s, "sql-frank")
		e := createEvent(t, s, owner.ID, "Standup")
		require.NoError(t, s.AddAttendee(ctx, &storage.EventAttendee{
			EventID: e.ID, UserID: owner.ID, Role: storage.RoleOwner, Status: storage.AttendeeAccepted,
		}))

		removed, err := s.RemoveAttendee(ctx, e.ID, owner.ID)
		require.NoError(t, err)
		require.False(t, removed)

		_, err = s.GetAttendee(ctx, e.ID, owner.ID)
		require.NoError(t, err)
	})

	t.Run("event delete cascades and detaches notifications", func(t *testing.T) {
		s := createStorage(t)
		owner := createUser(t, s, "sql-grace")
		invitee := createUser(t, s, "sql-heidi")
		e := createEvent(t, s, owner.ID, "Standup")
		require.NoError(t, s.AddAttendee(ctx, &storage.EventAttendee{
			EventID: e.ID, UserID: invitee.ID, Role: storage.RoleParticipant, Status: storage.AttendeeInvited,
		}))
		n := storage.Notification{UserID: invitee.ID, EventID: &e.ID, Type: storage.TypeEventInvite, Message: "m"}
		require.NoError(t, s.AddNotification(ctx, &n))

		removed, err := s.RemoveEvent(ctx, e.ID)
		require.NoError(t, err)
		require.True(t, removed)

		_, err = s.GetAttendee(ctx, e.ID, invitee.ID)
		require.ErrorIs(t, err, storage.ErrNotFoundAttendee)

		got, err := s.GetNotification(ctx, n.ID)
		require.NoError(t, err)
		require.Nil(t, got.EventID)
	})

	t.Run("notification ordering and unread count", func(t *testing.T) {
		s := createStorage(t)
		user := createUser(t, s, "sql-ivan")
		e := createEvent(t, s, user.ID, "Standup")

		ids := make([]string, 0, 3)
		for _, message := range []string{"first", "second", "third"} {
			n := storage.Notification{UserID: user.ID, EventID: &e.ID, Type: storage.TypeEventInvite, Message: message}
			require.NoError(t, s.AddNotification(ctx, &n))
			ids = append(ids, n.ID)
			time.Sleep(10 * time.Millisecond)
		}

		notifications, err := s.NotificationsForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, notifications, 3)
		require.Equal(t, "third", notifications[0].Message)

		count, err := s.UnreadCount(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, 3, count)

		ok, err := s.MarkNotificationRead(ctx, ids[0])
		require.NoError(t, err)
		require.True(t, ok)
		count, err = s.UnreadCount(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("reminder window", func(t *testing.T) {
		s := createStorage(t)
		owner := createUser(t, s, "sql-judy")
		base := time.Date(2300, 6, 1, 9, 0, 0, 0, time.UTC)

		remindAt := base.Add(30 * time.Minute)
		e := storage.Event{
			Title:        "With reminder",
			StartTime:    remindAt.Add(time.Hour),
			EndTime:      remindAt.Add(2 * time.Hour),
			ReminderTime: &remindAt,
			Status:       storage.EventConfirmed,
			OwnerID:      owner.ID,
		}
		require.NoError(t, s.AddEvent(ctx, &e))

		events, err := s.EventsWithReminderBetween(ctx, base, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, e.ID, events[0].ID)

		events, err = s.EventsWithReminderBetween(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Empty(t, events)
	})
}
