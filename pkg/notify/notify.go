// Package notify delivers user-facing notifications such as the toasts shown
// after a consumption calculation.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
)

// Level is the severity of a Notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a single transient message for a user.
type Notification struct {
	ID          string    `json:"id"`
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
}

// New returns a Notification with a fresh ID stamped with the current time.
func New(level Level, title, description string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Level:       level,
		Title:       title,
		Description: description,
		Time:        time.Now(),
	}
}

// Sink receives notifications. Notify must not block for long.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, n Notification)

// Notify implements Sink.
func (f SinkFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogSink writes notifications to the context logger.
type LogSink struct{}

// Notify implements Sink.
func (LogSink) Notify(ctx context.Context, n Notification) {
	lvl := slog.LevelInfo
	if n.Level == LevelError {
		lvl = slog.LevelWarn
	}
	log.Ctx(ctx).Log(
		ctx,
		lvl,
		"notification",
		slog.String("notificationID", n.ID),
		slog.String("level", string(n.Level)),
		slog.String("title", n.Title),
		slog.String("description", n.Description),
	)
}

// Multi fans a notification out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, n Notification) {
		for _, s := range sinks {
			s.Notify(ctx, n)
		}
	})
}
