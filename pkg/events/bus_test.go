package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecode_RoundTripsCompletion(t *testing.T) {
	e := Event{
		Type:      TypeSearchCompleted,
		Epoch:     3,
		SessionID: "s-1",
		Completion: &Completion{
			SessionID: "s-1",
			Query:     "best hiking trails",
			Report:    &searchapi.Report{Title: "Trails", Answer: "Go outside."},
		},
	}
	b, err := e.Marshal()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, TypeSearchCompleted, got.Type)
	require.Equal(t, uint64(3), got.Epoch)
	require.Equal(t, "Trails", got.Completion.Report.Title)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("nope"))
	require.Error(t, err)
	_, err = Decode([]byte(`{"epoch":1}`))
	require.Error(t, err)
}

func TestBus_HandlersReceivePublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewInMemoryBus()

	var mu sync.Mutex
	var a, b []Type
	require.NoError(t, bus.Handle(ctx, "a", func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		a = append(a, e.Type)
		return nil
	}))
	require.NoError(t, bus.Handle(ctx, "b", func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		b = append(b, e.Type)
		return nil
	}))

	require.NoError(t, bus.PublishEvent(Event{Type: TypeStepChanged, Step: "questions"}))
	require.NoError(t, bus.PublishEvent(Event{Type: TypeSearchCompleted}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(a) == 2 && len(b) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.ElementsMatch(t, []Type{TypeStepChanged, TypeSearchCompleted}, a)

	require.NoError(t, bus.Close())
	require.Error(t, bus.PublishEvent(Event{Type: TypeStateChanged}))
	require.NoError(t, bus.Close())
}

func TestBus_RedeliversUntilHandlerSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewInMemoryBus()
	defer func() { _ = bus.Close() }()

	var mu sync.Mutex
	calls := map[Type]int{}
	var handled []Type
	require.NoError(t, bus.Handle(ctx, "flaky", func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		calls[e.Type]++
		switch {
		case e.Type == TypeStepChanged && calls[e.Type] < 2:
			return errors.New("store busy")
		case e.Type == TypeStateChanged:
			return errors.New("always broken")
		}
		handled = append(handled, e.Type)
		return nil
	}))

	require.NoError(t, bus.PublishEvent(Event{Type: TypeStepChanged, Step: "questions"}))
	require.NoError(t, bus.PublishEvent(Event{Type: TypeStateChanged}))
	require.NoError(t, bus.PublishEvent(Event{Type: TypeSearchCompleted}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2 && calls[TypeStateChanged] == MaxHandlerAttempts
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, calls[TypeStepChanged])
	require.ElementsMatch(t, []Type{TypeStepChanged, TypeSearchCompleted}, handled)
}

func TestSinkFunc(t *testing.T) {
	var got Event
	var s Sink = SinkFunc(func(e Event) error {
		got = e
		return nil
	})
	require.NoError(t, s.PublishEvent(Event{Type: TypeMessagesCleared}))
	require.Equal(t, TypeMessagesCleared, got.Type)
	require.NoError(t, NopSink{}.PublishEvent(got))
}

func TestFanout_ReachesEverySink(t *testing.T) {
	var got []string
	record := func(name string, err error) Sink {
		return SinkFunc(func(e Event) error {
			got = append(got, name+":"+string(e.Type))
			return err
		})
	}
	s := Fanout(record("a", errors.New("boom")), record("b", nil))
	err := s.PublishEvent(Event{Type: TypeSearchCompleted})
	require.EqualError(t, err, "boom")
	require.Equal(t, []string{"a:search_completed", "b:search_completed"}, got)
}
