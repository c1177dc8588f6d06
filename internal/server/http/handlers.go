package internalhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/calendarapp/calendar/internal/app"
	"github.com/calendarapp/calendar/internal/storage"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

const (
	actorHeader = "X-User-ID"

	errActorNotProvided    = "acting user is not provided"
	errInternalServerError = "internal server error"
	errCredentialsRejected = "unknown username or password"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrIncorrectTitle),
		errors.Is(err, app.ErrIncorrectEventTime),
		errors.Is(err, app.ErrStartTimeInPast),
		errors.Is(err, app.ErrIncorrectUsername),
		errors.Is(err, app.ErrIncorrectPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, storage.ErrNotFoundEvent),
		errors.Is(err, storage.ErrNotFoundUser),
		errors.Is(err, storage.ErrNotFoundAttendee),
		errors.Is(err, storage.ErrNotFoundNotification):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrDuplicateUser):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, errInternalServerError)
	}
}

// The session subsystem in front of this API resolves the principal; the
// header carries its user id.
func actorID(r *http.Request) string {
	return r.Header.Get(actorHeader)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := storage.User{Username: req.Username, Email: req.Email, FullName: req.FullName}
	created, err := s.app.CreateAccount(r.Context(), user, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	principal, ok, err := s.app.ValidateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, errCredentialsRejected)
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, errActorNotProvided)
		return
	}

	var e storage.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e.OwnerID = actor

	created, err := s.app.CreateEvent(r.Context(), e)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.app.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.app.ListEvents(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, errActorNotProvided)
		return
	}

	var e storage.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.app.UpdateEvent(r.Context(), actor, chi.URLParam(r, "id"), e); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, errActorNotProvided)
		return
	}

	deleted, err := s.app.DeleteEvent(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

type inviteRequest struct {
	UserIDs []string `json:"userIds"`
	Emails  []string `json:"emails"`
}

func (s *Server) inviteUsers(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, errActorNotProvided)
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userIDs := req.UserIDs
	if len(req.Emails) > 0 {
		users, err := s.app.FindUsersByEmails(r.Context(), req.Emails)
		if err != nil {
			writeAppError(w, err)
			return
		}
		for _, u := range users {
			userIDs = append(userIDs, u.ID)
		}
	}

	if err := s.app.InviteUsers(r.Context(), actor, chi.URLParam(r, "id"), userIDs); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeAttendee(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, errActorNotProvided)
		return
	}

	removed, err := s.app.RemoveAttendee(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.app.ListNotifications(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.app.UnreadCount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	updated, err := s.app.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": updated})
}

func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, errActorNotProvided)
		return
	}

	updated, err := s.app.AcceptInvitation(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": updated})
}

func (s *Server) declineInvitation(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, errActorNotProvided)
		return
	}

	updated, err := s.app.DeclineInvitation(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": updated})
}
