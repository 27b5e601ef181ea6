package messages

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrMessageNotFound       = errors.New("message not found")
	ErrNotAQuestion          = errors.New("message is not a question")
	ErrChoiceAlreadySelected = errors.New("a different choice was already selected")
	ErrInvalidChoice         = errors.New("choice is not one of the offered options")
	ErrMismatchedPayload     = errors.New("payload does not match message type")
	ErrInvalidMessageType    = errors.New("invalid message type")
)

// Log is the ordered, in-memory conversation. It is safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
	newID    func() string
}

type LogOption func(*Log)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) LogOption {
	return func(l *Log) {
		l.now = now
	}
}

// WithIDGenerator overrides the id source.
func WithIDGenerator(f func() string) LogOption {
	return func(l *Log) {
		l.newID = f
	}
}

func NewLog(options ...LogOption) *Log {
	l := &Log{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Append assigns an id and timestamp to m, appends it and returns the id.
// Any id or timestamp already set on m is overwritten.
func (l *Log) Append(m Message) string {
	if err := Validate(m); err != nil {
		log.Warn().Err(err).Msg("appending malformed message")
	}
	m = m.clone()
	m.ID = l.newID()
	m.Timestamp = l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
	return m.ID
}

// Validate checks that m has a known type and a payload matching it.
func Validate(m Message) error {
	if !m.Type.Valid() {
		return errors.Wrapf(ErrInvalidMessageType, "%q", m.Type)
	}
	if m.Payload != nil && m.Payload.messageType() != m.Type {
		return errors.Wrapf(ErrMismatchedPayload, "%s message with %T", m.Type, m.Payload)
	}
	return nil
}

// Update applies mutate to the message with the given id. ID, Type and Timestamp
// cannot be changed. Returns false when no such message exists.
func (l *Log) Update(id string, mutate func(m *Message)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexLocked(id)
	if idx < 0 {
		return false
	}
	orig := l.messages[idx]
	updated := orig.clone()
	mutate(&updated)
	updated.ID = orig.ID
	updated.Type = orig.Type
	updated.Timestamp = orig.Timestamp
	l.messages[idx] = updated
	return true
}

// SelectChoice records the user's choice on a question message. Selecting the same
// choice again is a no-op; selecting a different one once a choice is set fails with
// ErrChoiceAlreadySelected.
func (l *Log) SelectChoice(id string, choice string) (Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexLocked(id)
	if idx < 0 {
		return Message{}, errors.Wrapf(ErrMessageNotFound, "id %s", id)
	}
	m := &l.messages[idx]
	if m.Type != TypeQuestion {
		return Message{}, errors.Wrapf(ErrNotAQuestion, "id %s is a %s message", id, m.Type)
	}
	if !contains(m.Options(), choice) {
		return Message{}, errors.Wrapf(ErrInvalidChoice, "%q", choice)
	}
	if m.HasSelection() && m.SelectedChoice != choice {
		return m.clone(), errors.Wrapf(ErrChoiceAlreadySelected, "selected %q", m.SelectedChoice)
	}
	m.SelectedChoice = choice
	return m.clone(), nil
}

// Remove deletes the message with the given id, returning whether it existed.
func (l *Log) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexLocked(id)
	if idx < 0 {
		return false
	}
	l.messages = append(l.messages[:idx], l.messages[idx+1:]...)
	return true
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

func (l *Log) Find(id string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.indexLocked(id)
	if idx < 0 {
		return Message{}, false
	}
	return l.messages[idx].clone(), true
}

// FirstUserMessage returns the content of the first user message, or "".
func (l *Log) FirstUserMessage() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.messages {
		if m.Type == TypeUser {
			return m.Content
		}
	}
	return ""
}

// Messages returns a copy of the log in insertion order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := make([]Message, len(l.messages))
	for i, m := range l.messages {
		ret[i] = m.clone()
	}
	return ret
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

func (l *Log) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range l.messages {
		if l.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
