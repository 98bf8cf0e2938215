package provisioning

import (
	"time"

	"go.uber.org/zap"
)

// Observer receives progress notifications during provisioning. It exists
// for user-facing output; diagnostic logging goes through zap directly.
type Observer interface {
	// Printf reports free-form progress.
	Printf(format string, v ...any)

	// Event reports a structured lifecycle event.
	Event(event Event)
}

// Event is one lifecycle notification.
type Event struct {
	Type      EventType
	Phase     string
	Resource  string
	Message   string
	Timestamp time.Time
}

// EventType classifies lifecycle events.
type EventType string

const (
	EventPhaseStarted    EventType = "phase.started"
	EventPhaseCompleted  EventType = "phase.completed"
	EventPhaseFailed     EventType = "phase.failed"
	EventResourceCreated EventType = "resource.created"
	EventResourceDeleted EventType = "resource.deleted"
)

// ZapObserver reports events through a zap logger.
type ZapObserver struct {
	log *zap.SugaredLogger
}

// NewZapObserver creates an observer backed by the given logger.
func NewZapObserver(log *zap.Logger) *ZapObserver {
	return &ZapObserver{log: log.Sugar()}
}

// Printf implements Observer.
func (o *ZapObserver) Printf(format string, v ...any) {
	o.log.Infof(format, v...)
}

// Event implements Observer.
func (o *ZapObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	o.log.Infow(event.Message,
		"event", string(event.Type),
		"phase", event.Phase,
		"resource", event.Resource,
	)
}

// NopObserver discards all notifications.
type NopObserver struct{}

// Printf implements Observer.
func (NopObserver) Printf(string, ...any) {}

// Event implements Observer.
func (NopObserver) Event(Event) {}
