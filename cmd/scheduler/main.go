package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calendarapp/calendar/internal/logger"
	"github.com/calendarapp/calendar/internal/rabbit"
	"github.com/calendarapp/calendar/internal/storage"
	"github.com/calendarapp/calendar/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
)

var configFile string

const checkTimeout = time.Minute

func init() {
	flag.StringVar(&configFile, "config", "./configs/scheduler_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to connect to rabbit: %v", err)
		return
	}
	defer r.Close()

	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	log.Info("scheduler is running...")

	lastCheck := time.Now()
	ticker := time.NewTicker(checkTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
			defer cancel()
			if err := stor.Close(ctx); err != nil {
				log.Errorf("failed to close storage: %v", err)
			}
			return
		case now := <-ticker.C:
			if err := processReminders(ctx, stor, r, lastCheck, now); err != nil {
				log.Errorf("failed to process reminders: %v", err)
				continue
			}
			lastCheck = now
		}
	}
}

// One reminder notification per non-declined attendee of each event whose
// reminder time fell into the checked window.
func processReminders(
	ctx context.Context,
	stor storage.Storage,
	r *rabbit.Provider,
	from time.Time,
	to time.Time,
) error {
	events, err := stor.EventsWithReminderBetween(ctx, from, to)
	if err != nil {
		return err
	}

	for _, event := range events {
		for _, attendee := range event.Attendees {
			if attendee.Status == storage.AttendeeDeclined {
				continue
			}

			notification := storage.Notification{
				UserID:   attendee.UserID,
				EventID:  &event.ID,
				Type:     storage.TypeReminder,
				Message:  fmt.Sprintf("Reminder: '%s' starts at %s", event.Title, event.StartTime.Format(time.RFC822)),
				NotifyAt: event.ReminderTime,
			}
			if err := stor.AddNotification(ctx, &notification); err != nil {
				log.Errorf("failed to store reminder for user %q: %v", attendee.UserID, err)
				continue
			}

			body, err := json.Marshal(rabbit.Message{
				NotificationID: notification.ID,
				EventID:        event.ID,
				EventTitle:     event.Title,
				StartTime:      event.StartTime,
				UserID:         attendee.UserID,
			})
			if err != nil {
				return err
			}
			if err := r.Publish(body); err != nil {
				return err
			}
		}
	}
	return nil
}
