package history

import (
	"context"
	"time"

	"github.com/go-go-golems/clarinet/pkg/events"
	"github.com/go-go-golems/clarinet/pkg/persistence/historystore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Recorder saves every completed search it hears about on the flow event bus.
type Recorder struct {
	store historystore.SearchStore
	now   func() time.Time
}

func NewRecorder(store historystore.SearchStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

var _ events.Sink = &Recorder{}

// PublishEvent records e synchronously so a search is saved before the flow moves on.
func (r *Recorder) PublishEvent(e events.Event) error {
	return r.HandleEvent(context.Background(), e)
}

// Attach subscribes the recorder to bus under the "history" consumer name. Use it
// when another process drives the flow over the redis transport.
func (r *Recorder) Attach(ctx context.Context, bus *events.Bus) error {
	return bus.Handle(ctx, "history", r.HandleEvent)
}

// HandleEvent ignores everything but search_completed events.
func (r *Recorder) HandleEvent(ctx context.Context, e events.Event) error {
	if e.Type != events.TypeSearchCompleted || e.Completion == nil {
		return nil
	}
	c := e.Completion
	if ctx == nil {
		ctx = context.Background()
	}
	rec := historystore.Record{
		SessionID:   c.SessionID,
		Query:       c.Query,
		Provider:    c.Provider,
		Report:      c.Report,
		Images:      c.Images,
		Resources:   c.Resources,
		UserDetails: c.UserDetails,
		CreatedAtMs: r.now().UnixMilli(),
	}
	if err := r.store.Save(ctx, rec); err != nil {
		return errors.Wrapf(err, "record search %s", c.SessionID)
	}
	log.Debug().Str("session_id", c.SessionID).Msg("recorded search in history")
	return nil
}
