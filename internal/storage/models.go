package storage

import (
	"time"
)

type EventStatus string

const (
	EventConfirmed EventStatus = "Confirmed"
	EventTentative EventStatus = "Tentative"
	EventCancelled EventStatus = "Cancelled"
)

type AttendeeRole string

const (
	RoleOwner       AttendeeRole = "Owner"
	RoleParticipant AttendeeRole = "Participant"
)

type AttendeeStatus string

const (
	AttendeeInvited   AttendeeStatus = "Invited"
	AttendeeAccepted  AttendeeStatus = "Accepted"
	AttendeeDeclined  AttendeeStatus = "Declined"
	AttendeeTentative AttendeeStatus = "Tentative"
)

type NotificationType string

const (
	TypeEventInvite NotificationType = "EventInvite"
	TypeEventUpdate NotificationType = "EventUpdate"
	TypeReminder    NotificationType = "Reminder"
	TypeCustom      NotificationType = "Custom"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Event struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	StartTime      time.Time   `json:"startTime"`
	EndTime        time.Time   `json:"endTime"`
	AllDay         bool        `json:"allDay"`
	Location       string      `json:"location"`
	IsRecurring    bool        `json:"isRecurring"`
	RecurrenceRule string      `json:"recurrenceRule"`
	RecurrenceEnd  *time.Time  `json:"recurrenceEnd"`
	ReminderTime   *time.Time  `json:"reminderTime"`
	Color          string      `json:"color"`
	Status         EventStatus `json:"status"`
	OwnerID        string      `json:"ownerId"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`

	// Resolved relations, populated by GetEvent/ListEvents.
	Owner     *User           `json:"owner,omitempty"`
	Attendees []EventAttendee `json:"attendees,omitempty"`
}

type EventAttendee struct {
	EventID   string         `json:"eventId"`
	UserID    string         `json:"userId"`
	Role      AttendeeRole   `json:"role"`
	Status    AttendeeStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	User *User `json:"user,omitempty"`
}

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	EventID   *string          `json:"eventId"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	NotifyAt  *time.Time       `json:"notifyAt"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`

	Event *Event `json:"event,omitempty"`
}
