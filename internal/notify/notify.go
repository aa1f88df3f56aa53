// Package notify is the boundary to the user-facing notification UI.
// The UI itself is external: implementations only deliver typed messages.
package notify

import (
	"sync"

	"github.com/estoquel/restocker/internal/logger"
)

type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
)

// Notifier receives user-facing messages emitted by auth and product flows
type Notifier interface {
	Notify(t Type, message string)
}

// LogNotifier delivers notifications to the application log.
// Used when no real notification channel is attached.
type LogNotifier struct {
	Logger logger.Logger
}

func (n *LogNotifier) Notify(t Type, message string) {
	switch t {
	case TypeError:
		n.Logger.Error(message, "notification", string(t))
	case TypeWarning:
		n.Logger.Warn(message, "notification", string(t))
	default:
		n.Logger.Info(message, "notification", string(t))
	}
}

// Notification as recorded by Recorder
type Notification struct {
	Type    Type
	Message string
}

// Recorder collects notifications for assertions in tests
type Recorder struct {
	mu     sync.Mutex
	events []Notification
}

func (r *Recorder) Notify(t Type, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Notification{Type: t, Message: message})
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]Notification, len(r.events))
	copy(events, r.events)
	return events
}

// Last returns the most recent notification and true, or false if none recorded
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return Notification{}, false
	}
	return r.events[len(r.events)-1], true
}
