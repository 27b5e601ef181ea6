package flow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/clarinet/pkg/events"
	"github.com/go-go-golems/clarinet/pkg/messages"
	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/go-go-golems/clarinet/pkg/session"
	"github.com/rs/zerolog/log"
)

const DefaultPollInterval = 3 * time.Second

// CredentialSource resolves the credentials sent with a new search.
type CredentialSource interface {
	Lookup(ctx context.Context, p credentials.Provider) (credentials.Credentials, error)
}

// Backend is the subset of the search service the flow talks to.
type Backend interface {
	StartSearch(ctx context.Context, req searchapi.StartRequest) (*searchapi.StartResponse, error)
	SubmitAnswers(ctx context.Context, req searchapi.SubmitRequest) (*searchapi.SubmitResponse, error)
	PollResults(ctx context.Context, sessionID string) (*searchapi.PollResult, error)
}

var (
	_ CredentialSource = &credentials.Store{}
	_ Backend          = &searchapi.Client{}
)

// State is a point-in-time copy of everything a view renders.
type State struct {
	Step            Step
	Loading         bool
	SubmitAvailable bool
	Polling         bool
	SessionID       string
	Provider        credentials.Provider
	Epoch           uint64
	Messages        []messages.Message
}

type Option func(*Orchestrator)

func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithEventSink sets where change notifications go. The default drops them.
func WithEventSink(s events.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

func WithSearchMode(mode string) Option {
	return func(o *Orchestrator) {
		if mode != "" {
			o.searchMode = mode
		}
	}
}

func WithMessageLog(l *messages.Log) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// Orchestrator drives one conversation through the clarify-then-search flow.
//
// Every continuation that runs after a network call captures the epoch it was
// started under and is dropped if a new query (or Close) moved the epoch since.
// Network calls never run under the mutex.
type Orchestrator struct {
	backend      Backend
	creds        CredentialSource
	sink         events.Sink
	pollInterval time.Duration
	searchMode   string

	mu              sync.Mutex
	log             *messages.Log
	session         *session.Session
	step            Step
	loading         bool
	submitAvailable bool
	submitting      bool
	submitted       bool
	provider        credentials.Provider
	epoch           uint64
	poll            *pollHandle
	closed          bool
	pending         []events.Event
}

func New(backend Backend, creds CredentialSource, options ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:      backend,
		creds:        creds,
		sink:         events.NopSink{},
		pollInterval: DefaultPollInterval,
		searchMode:   searchapi.SearchModeQuick,
		log:          messages.NewLog(),
		session:      session.New(),
		step:         StepQuery,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		Step:            o.step,
		Loading:         o.loading,
		SubmitAvailable: o.submitAvailable,
		Polling:         o.poll != nil,
		SessionID:       o.session.ID(),
		Provider:        o.provider,
		Epoch:           o.epoch,
		Messages:        o.log.Messages(),
	}
}

// StartSearchFlow begins a new conversation for query, discarding the previous one.
// It returns ErrAPIKeyMissing when provider has no stored key; every other failure
// ends up as a system message in the log.
func (o *Orchestrator) StartSearchFlow(ctx context.Context, query string, provider credentials.Provider) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	o.mu.Lock()
	if o.closed {
		o.unlock()
		return nil
	}
	epoch := o.resetLocked(provider)
	o.appendLocked(messages.NewUser(query))
	loadingID := o.appendLocked(messages.NewLoading(msgAnalyzing))
	o.loading = true
	o.unlock()

	creds, err := o.creds.Lookup(ctx, provider)
	if err != nil || !creds.HasAPIKey() {
		o.mu.Lock()
		if o.epoch == epoch {
			o.removeLocked(loadingID)
			o.loading = false
			if err != nil {
				log.Error().Err(err).Str("provider", string(provider)).Msg("could not read credentials")
				o.appendLocked(messages.NewSystem(msgStartFailed))
			}
		}
		o.unlock()
		if err != nil {
			return nil
		}
		return ErrAPIKeyMissing
	}

	log.Debug().Str("provider", string(provider)).Str("model", creds.Model).Msg("starting search")
	resp, err := o.backend.StartSearch(ctx, searchapi.StartRequest{
		Query:    query,
		Provider: string(provider),
		APIKey:   creds.APIKey,
		BaseURL:  creds.BaseURL,
		Model:    creds.Model,
	})

	o.mu.Lock()
	defer o.unlock()
	if o.epoch != epoch {
		log.Debug().Uint64("epoch", epoch).Msg("dropping stale start response")
		return nil
	}
	o.removeLocked(loadingID)
	o.loading = false
	if err != nil {
		o.appendLocked(messages.NewSystem(describeStartError(err)))
		return nil
	}

	o.session.Start(resp.SessionID, resp.Clarification)
	o.setStepLocked(StepQuestions)
	for _, q := range resp.Clarification {
		o.appendLocked(messages.NewQuestion(q))
	}
	if len(resp.Clarification) == 0 {
		o.appendLocked(messages.NewSystem(msgNoQuestions))
		o.submitAvailable = true
	}
	log.Info().Str("session_id", resp.SessionID).Int("questions", len(resp.Clarification)).Msg("search started")
	return nil
}

// HandleChoiceSelect records the user's choice (or Skip) for a question message.
func (o *Orchestrator) HandleChoiceSelect(messageID string, choice string) error {
	o.mu.Lock()
	defer o.unlock()
	if o.submitting || o.submitted {
		return ErrAnswersClosed
	}
	m, err := o.log.SelectChoice(messageID, choice)
	if err != nil {
		return err
	}
	o.emitLocked(events.TypeMessageUpdated, messageID)
	qid, ok := m.QuestionID()
	if !ok {
		return nil
	}
	if err := o.session.Answer(qid, choice); err != nil {
		return err
	}
	o.submitAvailable = o.session.HasAnswers()
	return nil
}

// SubmitAnswers sends every pending question to the backend, using Skip for the
// undecided ones, and starts polling once the backend accepted the search.
// It is a no-op without an active session or while a submission is in flight.
func (o *Orchestrator) SubmitAnswers(ctx context.Context) error {
	o.mu.Lock()
	if o.closed || !o.session.Active() || o.submitting || o.submitted {
		o.unlock()
		return nil
	}
	epoch := o.epoch
	o.submitting = true
	o.submitAvailable = false
	o.setStepLocked(StepAnswers)
	o.loading = true
	answered, skipped := o.session.Counts()
	loadingID := o.appendLocked(messages.NewLoading(processingMessage(answered, skipped)))
	sessionID := o.session.ID()
	req := searchapi.SubmitRequest{
		SessionID:  sessionID,
		SearchMode: o.searchMode,
		Query:      o.log.FirstUserMessage(),
		Answers:    o.session.SubmittedAnswers(),
	}
	o.unlock()

	resp, err := o.backend.SubmitAnswers(ctx, req)

	o.mu.Lock()
	defer o.unlock()
	if o.epoch != epoch {
		log.Debug().Uint64("epoch", epoch).Msg("dropping stale submit response")
		return nil
	}
	o.submitting = false
	o.removeLocked(loadingID)
	o.loading = false
	if err != nil {
		o.submitAvailable = true
		o.appendLocked(messages.NewSystem(describeSubmitError(err)))
		return nil
	}

	o.submitted = true
	o.setStepLocked(StepResults)
	switch resp.Status {
	case searchapi.StatusCompleted:
		o.appendLocked(messages.NewSystem(msgCompletedEarly))
	case searchapi.StatusStartedSearch:
		if resp.SessionID != "" {
			sessionID = resp.SessionID
		}
		searchingID := o.appendLocked(messages.NewLoading(msgSearching))
		o.startPollLocked(sessionID, searchingID)
	default:
		text := resp.Error
		if text == "" {
			text = msgSearchIncomplete
		}
		o.appendLocked(messages.NewSystem(searchErrorMessage(text)))
	}
	return nil
}

// PollForResults starts polling sessionID, replacing any running poll. The loading
// message is removed once the poll settles; pass "" when there is none.
func (o *Orchestrator) PollForResults(sessionID string, loadingMessageID string) {
	o.mu.Lock()
	defer o.unlock()
	if o.closed {
		return
	}
	o.startPollLocked(sessionID, loadingMessageID)
}

// ResumeSearch starts a fresh conversation that only polls an existing backend session.
func (o *Orchestrator) ResumeSearch(sessionID string, provider credentials.Provider) {
	o.mu.Lock()
	defer o.unlock()
	if o.closed {
		return
	}
	o.resetLocked(provider)
	o.session.Start(sessionID, nil)
	o.submitted = true
	o.setStepLocked(StepResults)
	loadingID := o.appendLocked(messages.NewLoading(msgSearching))
	o.startPollLocked(sessionID, loadingID)
}

// WaitForResults blocks until the running poll settles. It returns immediately when
// nothing is polling.
func (o *Orchestrator) WaitForResults(ctx context.Context) error {
	o.mu.Lock()
	h := o.poll
	o.mu.Unlock()
	if h == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops polling and drops every in-flight continuation.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.epoch++
	h := o.poll
	o.cancelPollLocked()
	o.unlock()
	if h != nil {
		<-h.done
	}
}

func (o *Orchestrator) resetLocked(provider credentials.Provider) uint64 {
	o.epoch++
	o.cancelPollLocked()
	o.session.Reset()
	o.log.Clear()
	o.emitLocked(events.TypeMessagesCleared, "")
	o.provider = provider
	o.loading = false
	o.submitAvailable = false
	o.submitting = false
	o.submitted = false
	o.step = ""
	o.setStepLocked(StepQuery)
	return o.epoch
}

func (o *Orchestrator) setStepLocked(s Step) {
	if o.step == s {
		return
	}
	o.step = s
	o.emitLocked(events.TypeStepChanged, "")
}

func (o *Orchestrator) appendLocked(m messages.Message) string {
	id := o.log.Append(m)
	o.emitLocked(events.TypeMessageAppended, id)
	return id
}

func (o *Orchestrator) removeLocked(id string) {
	if id == "" {
		return
	}
	if o.log.Remove(id) {
		o.emitLocked(events.TypeMessageRemoved, id)
	}
}

func (o *Orchestrator) emitLocked(t events.Type, messageID string) {
	o.pending = append(o.pending, events.Event{
		Type:      t,
		Epoch:     o.epoch,
		SessionID: o.session.ID(),
		Step:      string(o.step),
		MessageID: messageID,
		Time:      time.Now(),
	})
}

func (o *Orchestrator) emitCompletionLocked(c *events.Completion) {
	o.pending = append(o.pending, events.Event{
		Type:       events.TypeSearchCompleted,
		Epoch:      o.epoch,
		SessionID:  c.SessionID,
		Step:       string(o.step),
		Completion: c,
		Time:       time.Now(),
	})
}

// unlock releases the mutex and then publishes the events collected while it was held,
// followed by a state_changed marker.
func (o *Orchestrator) unlock() {
	pending := o.pending
	o.pending = nil
	if len(pending) > 0 {
		pending = append(pending, events.Event{
			Type:      events.TypeStateChanged,
			Epoch:     o.epoch,
			SessionID: o.session.ID(),
			Step:      string(o.step),
			Time:      time.Now(),
		})
	}
	o.mu.Unlock()
	for _, e := range pending {
		if err := o.sink.PublishEvent(e); err != nil {
			log.Warn().Err(err).Str("type", string(e.Type)).Msg("could not publish flow event")
		}
	}
}
