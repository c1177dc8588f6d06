package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calendarapp/calendar/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

var ErrConnectionFailed = errors.New("failed to connect")

const (
	dbErrUniqueViolation = "23505"
	dbErrFKViolation     = "23503"
)

const (
	userColumns = "id, username, email, full_name AS fullName, password_hash AS passwordHash, role, " +
		"created_at AS createdAt, updated_at AS updatedAt"
	eventColumns = "id, title, description, start_timestamp AS startTime, end_timestamp AS endTime, " +
		"all_day AS allDay, location, is_recurring AS isRecurring, recurrence_rule AS recurrenceRule, " +
		"recurrence_end AS recurrenceEnd, reminder_time AS reminderTime, color, status, " +
		"owner_id AS ownerId, created_at AS createdAt, updated_at AS updatedAt"
	attendeeColumns = "event_id AS eventId, user_id AS userId, role, status, " +
		"created_at AS createdAt, updated_at AS updatedAt"
	notificationColumns = "id, user_id AS userId, event_id AS eventId, type, message, read, " +
		"notify_at AS notifyAt, created_at AS createdAt, updated_at AS updatedAt"
)

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	host     string
	port     int
	database string
	username string
	password string
	db       *sqlx.DB
}

func New(config Config) *Storage {
	return &Storage{
		host:     config.Host,
		port:     config.Port,
		database: config.Database,
		username: config.Username,
		password: config.Password,
	}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		"postgres",
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.host, s.port, s.database, s.username, s.password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) AddUser(ctx context.Context, u *storage.User) error {
	var err error
	switch u.ID {
	case "":
		err = s.db.GetContext(
			ctx,
			&u.ID,
			"INSERT INTO Users(username, email, full_name, password_hash, role) "+
				"VALUES($1, $2, $3, $4, $5) RETURNING id",
			u.Username, u.Email, u.FullName, u.PasswordHash, u.Role)
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO Users(id, username, email, full_name, password_hash, role) "+
				"VALUES($1, $2, $3, $4, $5, $6)",
			u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.Role)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		if pqErr.Constraint == "users_pkey" {
			return fmt.Errorf("duplicate ID %q: %w", u.ID, storage.ErrDuplicateID)
		}
		return fmt.Errorf("user %q / %q: %w", u.Username, u.Email, storage.ErrDuplicateUser)
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, id string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM Users WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return u, err
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM Users WHERE username=$1", username)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("user %q: %w", username, storage.ErrNotFoundUser)
	}
	return u, err
}

func (s *Storage) FindUsersByEmails(ctx context.Context, emails []string) ([]storage.User, error) {
	users := make([]storage.User, 0)
	err := s.db.SelectContext(
		ctx,
		&users,
		"SELECT "+userColumns+" FROM Users WHERE email = ANY($1)",
		pq.Array(emails),
	)
	return users, err
}

func (s *Storage) RemoveUser(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.db.GetContext(ctx, &found, "DELETE FROM Users WHERE id=$1 RETURNING TRUE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

func (s *Storage) AddEvent(ctx context.Context, e *storage.Event) error {
	var err error
	switch e.ID {
	case "":
		err = s.db.GetContext(
			ctx,
			&e.ID,
			"INSERT INTO Events(title, description, start_timestamp, end_timestamp, all_day, location, "+
				"is_recurring, recurrence_rule, recurrence_end, reminder_time, color, status, owner_id) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id",
			e.Title, e.Description, e.StartTime.UTC(), e.EndTime.UTC(), e.AllDay, e.Location,
			e.IsRecurring, e.RecurrenceRule, e.RecurrenceEnd, e.ReminderTime, e.Color, e.Status, e.OwnerID)
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO Events(id, title, description, start_timestamp, end_timestamp, all_day, location, "+
				"is_recurring, recurrence_rule, recurrence_end, reminder_time, color, status, owner_id) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
			e.ID, e.Title, e.Description, e.StartTime.UTC(), e.EndTime.UTC(), e.AllDay, e.Location,
			e.IsRecurring, e.RecurrenceRule, e.RecurrenceEnd, e.ReminderTime, e.Color, e.Status, e.OwnerID)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case dbErrUniqueViolation:
			return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateID)
		case dbErrFKViolation:
			return fmt.Errorf("owner with id %q: %w", e.OwnerID, storage.ErrNotFoundUser)
		}
	}
	return err
}

func (s *Storage) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	var e storage.Event
	err := s.db.GetContext(ctx, &e, "SELECT "+eventColumns+" FROM Events WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Event{}, fmt.Errorf("event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return storage.Event{}, err
	}

	events := []storage.Event{e}
	if err := s.resolveEvents(ctx, events); err != nil {
		return storage.Event{}, err
	}
	return events[0], nil
}

func (s *Storage) ListEvents(ctx context.Context) ([]storage.Event, error) {
	events := make([]storage.Event, 0)
	err := s.db.SelectContext(ctx, &events, "SELECT "+eventColumns+" FROM Events")
	if err != nil {
		return nil, err
	}
	if err := s.resolveEvents(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Storage) UpdateEvent(ctx context.Context, id string, e storage.Event) error {
	var found bool
	err := s.db.GetContext(
		ctx,
		&found,
		"UPDATE Events SET title=$2, description=$3, start_timestamp=$4, end_timestamp=$5, all_day=$6, "+
			"location=$7, is_recurring=$8, recurrence_rule=$9, recurrence_end=$10, reminder_time=$11, "+
			"color=$12, status=$13, updated_at=now() WHERE id=$1 RETURNING TRUE",
		id, e.Title, e.Description, e.StartTime.UTC(), e.EndTime.UTC(), e.AllDay, e.Location,
		e.IsRecurring, e.RecurrenceRule, e.RecurrenceEnd, e.ReminderTime, e.Color, e.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return err
}

func (s *Storage) RemoveEvent(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.db.GetContext(ctx, &found, "DELETE FROM Events WHERE id=$1 RETURNING TRUE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

// Select events with reminder time in range (from:to].
func (s *Storage) EventsWithReminderBetween(
	ctx context.Context,
	from time.Time,
	to time.Time,
) ([]storage.Event, error) {
	events := make([]storage.Event, 0)
	err := s.db.SelectContext(
		ctx,
		&events,
		"SELECT "+eventColumns+" FROM Events WHERE reminder_time > $1 AND reminder_time <= $2",
		from,
		to,
	)
	if err != nil {
		return nil, err
	}
	if err := s.resolveEvents(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Storage) AddAttendee(ctx context.Context, a *storage.EventAttendee) error {
	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO EventAttendees(event_id, user_id, role, status) VALUES($1, $2, $3, $4)",
		a.EventID, a.UserID, a.Role, a.Status,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case dbErrUniqueViolation:
			return fmt.Errorf("attendee (%q,%q): %w", a.EventID, a.UserID, storage.ErrDuplicateAttendee)
		case dbErrFKViolation:
			if pqErr.Constraint == "eventattendees_user_id_fkey" {
				return fmt.Errorf("user with id %q: %w", a.UserID, storage.ErrNotFoundUser)
			}
			return fmt.Errorf("event with id %q: %w", a.EventID, storage.ErrNotFoundEvent)
		}
	}
	return err
}

func (s *Storage) GetAttendee(ctx context.Context, eventID string, userID string) (storage.EventAttendee, error) {
	var a storage.EventAttendee
	err := s.db.GetContext(
		ctx,
		&a,
		"SELECT "+attendeeColumns+" FROM EventAttendees WHERE event_id=$1 AND user_id=$2",
		eventID,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.EventAttendee{}, fmt.Errorf("attendee (%q,%q): %w", eventID, userID, storage.ErrNotFoundAttendee)
	}
	return a, err
}

func (s *Storage) UpdateAttendeeStatus(
	ctx context.Context,
	eventID string,
	userID string,
	status storage.AttendeeStatus,
) error {
	var found bool
	err := s.db.GetContext(
		ctx,
		&found,
		"UPDATE EventAttendees SET status=$3, updated_at=now() WHERE event_id=$1 AND user_id=$2 RETURNING TRUE",
		eventID,
		userID,
		status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("attendee (%q,%q): %w", eventID, userID, storage.ErrNotFoundAttendee)
	}
	return err
}

// RemoveAttendee never removes the Owner row.
func (s *Storage) RemoveAttendee(ctx context.Context, eventID string, userID string) (bool, error) {
	var found bool
	err := s.db.GetContext(
		ctx,
		&found,
		"DELETE FROM EventAttendees WHERE event_id=$1 AND user_id=$2 AND role<>$3 RETURNING TRUE",
		eventID,
		userID,
		storage.RoleOwner,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

func (s *Storage) AddNotification(ctx context.Context, n *storage.Notification) error {
	var err error
	switch n.ID {
	case "":
		err = s.db.GetContext(
			ctx,
			&n.ID,
			"INSERT INTO Notifications(user_id, event_id, type, message, read, notify_at) "+
				"VALUES($1, $2, $3, $4, $5, $6) RETURNING id",
			n.UserID, n.EventID, n.Type, n.Message, n.Read, n.NotifyAt)
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO Notifications(id, user_id, event_id, type, message, read, notify_at) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7)",
			n.ID, n.UserID, n.EventID, n.Type, n.Message, n.Read, n.NotifyAt)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case dbErrUniqueViolation:
			return fmt.Errorf("duplicate ID %q: %w", n.ID, storage.ErrDuplicateID)
		case dbErrFKViolation:
			return fmt.Errorf("user with id %q: %w", n.UserID, storage.ErrNotFoundUser)
		}
	}
	return err
}

func (s *Storage) GetNotification(ctx context.Context, id string) (storage.Notification, error) {
	var n storage.Notification
	err := s.db.GetContext(ctx, &n, "SELECT "+notificationColumns+" FROM Notifications WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Notification{}, fmt.Errorf("notification with id %q: %w", id, storage.ErrNotFoundNotification)
	}
	if err != nil {
		return storage.Notification{}, err
	}

	notifications := []storage.Notification{n}
	if err := s.resolveNotifications(ctx, notifications); err != nil {
		return storage.Notification{}, err
	}
	return notifications[0], nil
}

func (s *Storage) NotificationsForUser(ctx context.Context, userID string) ([]storage.Notification, error) {
	notifications := make([]storage.Notification, 0)
	err := s.db.SelectContext(
		ctx,
		&notifications,
		"SELECT "+notificationColumns+" FROM Notifications WHERE user_id=$1 ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	if err := s.resolveNotifications(ctx, notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *Storage) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(
		ctx,
		&count,
		"SELECT COUNT(*) FROM Notifications WHERE user_id=$1 AND read=FALSE",
		userID,
	)
	return count, err
}

func (s *Storage) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.db.GetContext(
		ctx,
		&found,
		"UPDATE Notifications SET read=TRUE, updated_at=now() WHERE id=$1 RETURNING TRUE",
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

// Fills Owner and Attendees (with users) for the given events in place.
func (s *Storage) resolveEvents(ctx context.Context, events []storage.Event) error {
	if len(events) == 0 {
		return nil
	}

	eventIDs := make([]string, 0, len(events))
	for _, e := range events {
		eventIDs = append(eventIDs, e.ID)
	}

	attendees := make([]storage.EventAttendee, 0)
	err := s.db.SelectContext(
		ctx,
		&attendees,
		"SELECT "+attendeeColumns+" FROM EventAttendees WHERE event_id = ANY($1) ORDER BY created_at",
		pq.Array(eventIDs),
	)
	if err != nil {
		return err
	}

	userIDs := make([]string, 0, len(attendees)+len(events))
	for _, e := range events {
		userIDs = append(userIDs, e.OwnerID)
	}
	for _, a := range attendees {
		userIDs = append(userIDs, a.UserID)
	}
	users := make([]storage.User, 0)
	err = s.db.SelectContext(
		ctx,
		&users,
		"SELECT "+userColumns+" FROM Users WHERE id = ANY($1)",
		pq.Array(userIDs),
	)
	if err != nil {
		return err
	}
	usersByID := make(map[string]storage.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	attendeesByEvent := make(map[string][]storage.EventAttendee, len(events))
	for _, a := range attendees {
		if u, ok := usersByID[a.UserID]; ok {
			user := u
			a.User = &user
		}
		attendeesByEvent[a.EventID] = append(attendeesByEvent[a.EventID], a)
	}

	for i := range events {
		if u, ok := usersByID[events[i].OwnerID]; ok {
			owner := u
			events[i].Owner = &owner
		}
		events[i].Attendees = attendeesByEvent[events[i].ID]
		if events[i].Attendees == nil {
			events[i].Attendees = make([]storage.EventAttendee, 0)
		}
	}
	return nil
}

// Fills the associated event aggregate for the given notifications in place.
func (s *Storage) resolveNotifications(ctx context.Context, notifications []storage.Notification) error {
	eventIDs := make([]string, 0, len(notifications))
	for _, n := range notifications {
		if n.EventID != nil {
			eventIDs = append(eventIDs, *n.EventID)
		}
	}
	if len(eventIDs) == 0 {
		return nil
	}

	events := make([]storage.Event, 0)
	err := s.db.SelectContext(
		ctx,
		&events,
		"SELECT "+eventColumns+" FROM Events WHERE id = ANY($1)",
		pq.Array(eventIDs),
	)
	if err != nil {
		return err
	}
	if err := s.resolveEvents(ctx, events); err != nil {
		return err
	}

	eventsByID := make(map[string]storage.Event, len(events))
	for _, e := range events {
		eventsByID[e.ID] = e
	}
	for i := range notifications {
		if notifications[i].EventID == nil {
			continue
		}
		if e, ok := eventsByID[*notifications[i].EventID]; ok {
			event := e
			notifications[i].Event = &event
		}
	}
	return nil
}
