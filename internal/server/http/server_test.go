package internalhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calendarapp/calendar/internal/app"
	"github.com/calendarapp/calendar/internal/storage"
	memorystorage "github.com/calendarapp/calendar/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	calendar := app.New(memorystorage.New(), app.Config{})
	ts := httptest.NewServer(NewServer(Config{}, calendar).Router())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, actor string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if actor != "" {
		req.Header.Set(actorHeader, actor)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func registerUser(t *testing.T, ts *httptest.Server, username string) storage.User {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var u storage.User
	decode(t, resp, &u)
	require.NotEmpty(t, u.ID)
	return u
}

func createEvent(t *testing.T, ts *httptest.Server, ownerID string, title string) storage.Event {
	t.Helper()
	start := time.Date(2400, 1, 1, 9, 0, 0, 0, time.UTC)
	resp := doRequest(t, ts, http.MethodPost, "/events", ownerID, storage.Event{
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var e storage.Event
	decode(t, resp, &e)
	return e
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/auth/register", "", map[string]string{
			"username": "alice",
			"email":    "alice2@example.com",
			"password": "correct-horse-battery",
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("login succeeds", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/auth/login", "", map[string]string{
			"username": "alice",
			"password": "correct-horse-battery",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var principal app.Principal
		decode(t, resp, &principal)
		require.Equal(t, "alice", principal.Username)
		require.NotEmpty(t, principal.UserID)
	})

	t.Run("wrong password unauthorized", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/auth/login", "", map[string]string{
			"username": "alice",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestEventEndpoints(t *testing.T) {
	ts := newTestServer(t)
	alice := registerUser(t, ts, "alice")
	bob := registerUser(t, ts, "bob")

	t.Run("create requires actor", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/events", "", storage.Event{Title: "Standup"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("create and fetch aggregate", func(t *testing.T) {
		e := createEvent(t, ts, alice.ID, "Standup")

		resp := doRequest(t, ts, http.MethodGet, "/events/"+e.ID, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got storage.Event
		decode(t, resp, &got)
		require.Equal(t, alice.ID, got.OwnerID)
		require.Len(t, got.Attendees, 1)
		require.Equal(t, storage.RoleOwner, got.Attendees[0].Role)
	})

	t.Run("validation surfaces as bad request", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/events", alice.ID, storage.Event{Title: "ab"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown event not found", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/events/no-such-id", "", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("update denied for non-owner", func(t *testing.T) {
		e := createEvent(t, ts, alice.ID, "Standup")
		e.Title = "Hijacked"
		resp := doRequest(t, ts, http.MethodPut, "/events/"+e.ID, bob.ID, e)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("delete reports result", func(t *testing.T) {
		e := createEvent(t, ts, alice.ID, "Standup")
		resp := doRequest(t, ts, http.MethodDelete, "/events/"+e.ID, alice.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result map[string]bool
		decode(t, resp, &result)
		require.True(t, result["deleted"])

		resp = doRequest(t, ts, http.MethodDelete, "/events/"+e.ID, alice.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, resp, &result)
		require.False(t, result["deleted"])
	})
}

func TestInvitationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	alice := registerUser(t, ts, "alice")
	bob := registerUser(t, ts, "bob")
	e := createEvent(t, ts, alice.ID, "Standup")

	resp := doRequest(t, ts, http.MethodPost, "/events/"+e.ID+"/invite", alice.ID, map[string][]string{
		"emails": {"bob@example.com"},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, ts, http.MethodGet, "/users/"+bob.ID+"/notifications/unread-count", bob.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count map[string]int
	decode(t, resp, &count)
	require.Equal(t, 1, count["count"])

	resp = doRequest(t, ts, http.MethodGet, "/users/"+bob.ID+"/notifications", bob.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var notifications []storage.Notification
	decode(t, resp, &notifications)
	require.Len(t, notifications, 1)
	require.Equal(t, storage.TypeEventInvite, notifications[0].Type)
	require.NotNil(t, notifications[0].Event)
	require.Equal(t, "Standup", notifications[0].Event.Title)

	resp = doRequest(t, ts, http.MethodPost, fmt.Sprintf("/notifications/%s/accept", notifications[0].ID), bob.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]bool
	decode(t, resp, &result)
	require.True(t, result["updated"])

	resp = doRequest(t, ts, http.MethodGet, "/events/"+e.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got storage.Event
	decode(t, resp, &got)
	require.Len(t, got.Attendees, 2)
	for _, attendee := range got.Attendees {
		if attendee.UserID == bob.ID {
			require.Equal(t, storage.AttendeeAccepted, attendee.Status)
		}
	}

	resp = doRequest(t, ts, http.MethodDelete, "/events/"+e.ID+"/attendees/"+alice.ID, alice.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &result)
	require.False(t, result["removed"])
}
