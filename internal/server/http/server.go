package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/calendarapp/calendar/internal/app"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Host string
	Port int
}

type Server struct {
	srv  *http.Server
	addr string
	app  *app.App
}

func NewServer(config Config, app *app.App) *Server {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	s := &Server{addr: addr, app: app}
	s.srv = &http.Server{Addr: addr, Handler: loggingMiddleware(s.Router())}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.listEvents)
		r.Post("/", s.createEvent)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getEvent)
			r.Put("/", s.updateEvent)
			r.Delete("/", s.deleteEvent)
			r.Post("/invite", s.inviteUsers)
			r.Delete("/attendees/{userID}", s.removeAttendee)
		})
	})

	r.Route("/users/{id}/notifications", func(r chi.Router) {
		r.Get("/", s.listNotifications)
		r.Get("/unread-count", s.unreadCount)
	})

	r.Route("/notifications/{id}", func(r chi.Router) {
		r.Post("/read", s.markRead)
		r.Post("/accept", s.acceptInvitation)
		r.Post("/decline", s.declineInvitation)
	})

	return r
}

func (s *Server) Start(_ context.Context) error {
	log.Printf("starting http server on %s", s.addr)
	err := s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func getIP(req *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}

	if parsed := net.ParseIP(ip); parsed == nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}
	return ip, nil
}
