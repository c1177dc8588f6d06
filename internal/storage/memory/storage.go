package memorystorage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/calendarapp/calendar/internal/storage"
	"github.com/google/uuid"
)

type Storage struct {
	mu            sync.RWMutex
	users         map[string]storage.User
	events        map[string]storage.Event
	attendees     map[string]map[string]storage.EventAttendee
	notifications map[string]storage.Notification
	notifSeq      map[string]int
	seq           int
}

func New() *Storage {
	return &Storage{
		users:         make(map[string]storage.User),
		events:        make(map[string]storage.Event),
		attendees:     make(map[string]map[string]storage.EventAttendee),
		notifications: make(map[string]storage.Notification),
		notifSeq:      make(map[string]int),
	}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

func (s *Storage) AddUser(_ context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", u.ID, storage.ErrDuplicateID)
	}
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("user %q / %q: %w", u.Username, u.Email, storage.ErrDuplicateUser)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, fmt.Errorf("user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return u, nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return storage.User{}, fmt.Errorf("user %q: %w", username, storage.ErrNotFoundUser)
}

func (s *Storage) FindUsersByEmails(_ context.Context, emails []string) ([]storage.User, error) {
	wanted := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		wanted[email] = struct{}{}
	}

	users := make([]storage.User, 0)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if _, ok := wanted[u.Email]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *Storage) RemoveUser(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	for eventID, e := range s.events {
		if e.OwnerID == id {
			s.removeEventLocked(eventID)
		}
	}
	for eventID := range s.attendees {
		delete(s.attendees[eventID], id)
	}
	for nid, n := range s.notifications {
		if n.UserID == id {
			delete(s.notifications, nid)
			delete(s.notifSeq, nid)
		}
	}
	return true, nil
}

func (s *Storage) AddEvent(_ context.Context, e *storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateID)
	}
	if _, ok := s.users[e.OwnerID]; !ok {
		return fmt.Errorf("owner with id %q: %w", e.OwnerID, storage.ErrNotFoundUser)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	stored := *e
	stored.Owner = nil
	stored.Attendees = nil
	s.events[e.ID] = stored
	s.attendees[e.ID] = make(map[string]storage.EventAttendee)
	return nil
}

func (s *Storage) GetEvent(_ context.Context, id string) (storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return s.resolveEvent(e), nil
}

func (s *Storage) ListEvents(_ context.Context) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]storage.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, s.resolveEvent(e))
	}
	return events, nil
}

func (s *Storage) UpdateEvent(_ context.Context, id string, e storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.events[id]
	if !ok {
		return fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	existing.Title = e.Title
	existing.Description = e.Description
	existing.StartTime = e.StartTime
	existing.EndTime = e.EndTime
	existing.AllDay = e.AllDay
	existing.Location = e.Location
	existing.IsRecurring = e.IsRecurring
	existing.RecurrenceRule = e.RecurrenceRule
	existing.RecurrenceEnd = e.RecurrenceEnd
	existing.ReminderTime = e.ReminderTime
	existing.Color = e.Color
	existing.Status = e.Status
	existing.UpdatedAt = time.Now().UTC()
	s.events[id] = existing
	return nil
}

func (s *Storage) RemoveEvent(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return false, nil
	}
	s.removeEventLocked(id)
	return true, nil
}

func (s *Storage) removeEventLocked(id string) {
	delete(s.events, id)
	delete(s.attendees, id)
	for nid, n := range s.notifications {
		if n.EventID != nil && *n.EventID == id {
			n.EventID = nil
			n.UpdatedAt = time.Now().UTC()
			s.notifications[nid] = n
		}
	}
}

// Select events with reminder time in range (from:to].
func (s *Storage) EventsWithReminderBetween(
	_ context.Context,
	from time.Time,
	to time.Time,
) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]storage.Event, 0)
	for _, e := range s.events {
		if e.ReminderTime == nil {
			continue
		}
		if e.ReminderTime.After(from) && !e.ReminderTime.After(to) {
			events = append(events, s.resolveEvent(e))
		}
	}
	return events, nil
}

func (s *Storage) AddAttendee(_ context.Context, a *storage.EventAttendee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.attendees[a.EventID]
	if !ok {
		return fmt.Errorf("event with id %q: %w", a.EventID, storage.ErrNotFoundEvent)
	}
	if _, ok := byUser[a.UserID]; ok {
		return fmt.Errorf("attendee (%q,%q): %w", a.EventID, a.UserID, storage.ErrDuplicateAttendee)
	}
	if _, ok := s.users[a.UserID]; !ok {
		return fmt.Errorf("user with id %q: %w", a.UserID, storage.ErrNotFoundUser)
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	stored := *a
	stored.User = nil
	byUser[a.UserID] = stored
	return nil
}

func (s *Storage) GetAttendee(_ context.Context, eventID string, userID string) (storage.EventAttendee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attendees[eventID][userID]
	if !ok {
		return storage.EventAttendee{}, fmt.Errorf("attendee (%q,%q): %w", eventID, userID, storage.ErrNotFoundAttendee)
	}
	return a, nil
}

func (s *Storage) UpdateAttendeeStatus(
	_ context.Context,
	eventID string,
	userID string,
	status storage.AttendeeStatus,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendees[eventID][userID]
	if !ok {
		return fmt.Errorf("attendee (%q,%q): %w", eventID, userID, storage.ErrNotFoundAttendee)
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	s.attendees[eventID][userID] = a
	return nil
}

// RemoveAttendee never removes the Owner row.
func (s *Storage) RemoveAttendee(_ context.Context, eventID string, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendees[eventID][userID]
	if !ok {
		return false, nil
	}
	if a.Role == storage.RoleOwner {
		return false, nil
	}
	delete(s.attendees[eventID], userID)
	return true, nil
}

func (s *Storage) AddNotification(_ context.Context, n *storage.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", n.ID, storage.ErrDuplicateID)
	}
	if _, ok := s.users[n.UserID]; !ok {
		return fmt.Errorf("user with id %q: %w", n.UserID, storage.ErrNotFoundUser)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	stored := *n
	stored.Event = nil
	s.notifications[n.ID] = stored
	s.seq++
	s.notifSeq[n.ID] = s.seq
	return nil
}

func (s *Storage) GetNotification(_ context.Context, id string) (storage.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return storage.Notification{}, fmt.Errorf("notification with id %q: %w", id, storage.ErrNotFoundNotification)
	}
	return s.resolveNotification(n), nil
}

func (s *Storage) NotificationsForUser(_ context.Context, userID string) ([]storage.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notifications := make([]storage.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			notifications = append(notifications, s.resolveNotification(n))
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		if notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return s.notifSeq[notifications[i].ID] > s.notifSeq[notifications[j].ID]
		}
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (s *Storage) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Storage) MarkNotificationRead(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return false, nil
	}
	n.Read = true
	n.UpdatedAt = time.Now().UTC()
	s.notifications[id] = n
	return true, nil
}

func (s *Storage) resolveEvent(e storage.Event) storage.Event {
	if owner, ok := s.users[e.OwnerID]; ok {
		e.Owner = &owner
	}
	attendees := make([]storage.EventAttendee, 0, len(s.attendees[e.ID]))
	for _, a := range s.attendees[e.ID] {
		if u, ok := s.users[a.UserID]; ok {
			a.User = &u
		}
		attendees = append(attendees, a)
	}
	sort.Slice(attendees, func(i, j int) bool {
		return attendees[i].CreatedAt.Before(attendees[j].CreatedAt)
	})
	e.Attendees = attendees
	return e
}

func (s *Storage) resolveNotification(n storage.Notification) storage.Notification {
	if n.EventID == nil {
		return n
	}
	if e, ok := s.events[*n.EventID]; ok {
		resolved := s.resolveEvent(e)
		n.Event = &resolved
	}
	return n
}
