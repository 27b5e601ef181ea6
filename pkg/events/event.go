package events

import (
	"encoding/json"
	"time"

	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/pkg/errors"
)

// Type names a flow notification.
type Type string

const (
	TypeStepChanged     Type = "step_changed"
	TypeMessageAppended Type = "message_appended"
	TypeMessageUpdated  Type = "message_updated"
	TypeMessageRemoved  Type = "message_removed"
	TypeMessagesCleared Type = "messages_cleared"
	TypeStateChanged    Type = "state_changed"
	TypeSearchCompleted Type = "search_completed"
)

// Event tells listeners that the flow state moved. Events carry ids, not state:
// views re-read the orchestrator snapshot after receiving one.
type Event struct {
	Type       Type        `json:"type"`
	Epoch      uint64      `json:"epoch"`
	SessionID  string      `json:"session_id,omitempty"`
	Step       string      `json:"step,omitempty"`
	MessageID  string      `json:"message_id,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
	Time       time.Time   `json:"time"`
}

// Completion is attached to search_completed events so recorders do not need
// access to the orchestrator.
type Completion struct {
	SessionID   string               `json:"session_id"`
	Query       string               `json:"query"`
	Provider    string               `json:"provider"`
	Report      *searchapi.Report    `json:"report,omitempty"`
	Images      []string             `json:"images,omitempty"`
	Resources   []searchapi.Resource `json:"resources,omitempty"`
	UserDetails string               `json:"user_details,omitempty"`
}

func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	return b, errors.Wrap(err, "marshal flow event")
}

// Decode parses an event payload produced by Marshal.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, errors.Wrap(err, "decode flow event")
	}
	if e.Type == "" {
		return Event{}, errors.New("decode flow event: missing type")
	}
	return e, nil
}

// Sink receives flow events.
type Sink interface {
	PublishEvent(e Event) error
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) PublishEvent(Event) error { return nil }

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event) error

func (f SinkFunc) PublishEvent(e Event) error { return f(e) }

type fanout []Sink

// Fanout publishes every event to each sink in order. All sinks see the event
// even when an earlier one fails; the first error is returned.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

func (f fanout) PublishEvent(e Event) error {
	var firstErr error
	for _, s := range f {
		if err := s.PublishEvent(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
