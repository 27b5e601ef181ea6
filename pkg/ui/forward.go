package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/clarinet/pkg/events"
	"github.com/rs/zerolog/log"
)

// FlowEventMsg tells the model that the flow state changed.
type FlowEventMsg struct {
	Event events.Event
}

// FlowForwardFunc forwards bus events into the program p. Only state_changed and
// search_completed are sent: every other event is followed by a state_changed.
func FlowForwardFunc(p *tea.Program) func(ctx context.Context, e events.Event) error {
	return func(_ context.Context, e events.Event) error {
		switch e.Type {
		case events.TypeStateChanged, events.TypeSearchCompleted:
			log.Trace().Str("type", string(e.Type)).Uint64("epoch", e.Epoch).Msg("dispatching flow event to UI")
			p.Send(FlowEventMsg{Event: e})
		default:
		}
		return nil
	}
}

// AttachProgram subscribes p to bus under the "ui" consumer name.
func AttachProgram(ctx context.Context, bus *events.Bus, p *tea.Program) error {
	return bus.Handle(ctx, "ui", FlowForwardFunc(p))
}
