package session

import (
	"sync"

	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/pkg/errors"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrUnknownQuestion = errors.New("question is not part of the active session")
)

// Session is the single active search: the backend session id, the clarification
// questions it asked, and the answers collected so far.
//
// Answered question ids are always a subset of the pending question ids.
type Session struct {
	mu       sync.RWMutex
	id       string
	pending  []searchapi.ClarificationQuestion
	answered map[string]string
}

func New() *Session {
	return &Session{answered: map[string]string{}}
}

// Reset drops the active session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.pending = nil
	s.answered = map[string]string{}
}

// Start replaces the session with a new one.
func (s *Session) Start(id string, questions []searchapi.ClarificationQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.pending = cloneQuestions(questions)
	s.answered = map[string]string{}
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Session) Active() bool {
	return s.ID() != ""
}

func (s *Session) Pending() []searchapi.ClarificationQuestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneQuestions(s.pending)
}

// Answer records choice for questionID. The last write wins.
func (s *Session) Answer(questionID, choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		return ErrNoActiveSession
	}
	if !s.hasQuestionLocked(questionID) {
		return errors.Wrapf(ErrUnknownQuestion, "question %s", questionID)
	}
	s.answered[questionID] = choice
	return nil
}

// Answered returns a copy of the recorded answers.
func (s *Session) Answered() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make(map[string]string, len(s.answered))
	for k, v := range s.answered {
		ret[k] = v
	}
	return ret
}

// HasAnswers reports whether at least one question has a recorded answer.
// A single answer is enough to allow submission.
func (s *Session) HasAnswers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answered) > 0
}

// Counts returns how many pending questions have a recorded answer and how many do not.
// An explicit Skip counts as answered.
func (s *Session) Counts() (answered int, skipped int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answered = len(s.answered)
	skipped = len(s.pending) - answered
	if skipped < 0 {
		skipped = 0
	}
	return answered, skipped
}

// SubmittedAnswers maps every pending question to its answer, using Skip for
// questions without one, in pending order.
func (s *Session) SubmittedAnswers() []searchapi.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]searchapi.Answer, 0, len(s.pending))
	for _, q := range s.pending {
		choice, ok := s.answered[q.QuestionID]
		if !ok || choice == "" {
			choice = searchapi.SkipChoice
		}
		ret = append(ret, searchapi.Answer{
			QuestionID: q.QuestionID,
			Question:   q.Text,
			Choice:     choice,
		})
	}
	return ret
}

func (s *Session) hasQuestionLocked(id string) bool {
	for _, q := range s.pending {
		if q.QuestionID == id {
			return true
		}
	}
	return false
}

func cloneQuestions(qs []searchapi.ClarificationQuestion) []searchapi.ClarificationQuestion {
	if qs == nil {
		return nil
	}
	ret := make([]searchapi.ClarificationQuestion, len(qs))
	for i, q := range qs {
		q.Choices = append([]string(nil), q.Choices...)
		ret[i] = q
	}
	return ret
}
