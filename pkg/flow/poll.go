package flow

import (
	"context"
	"time"

	"github.com/go-go-golems/clarinet/pkg/events"
	"github.com/go-go-golems/clarinet/pkg/messages"
	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/rs/zerolog/log"
)

// pollHandle owns one polling goroutine. done is closed when the goroutine exits.
type pollHandle struct {
	sessionID string
	epoch     uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

func (o *Orchestrator) startPollLocked(sessionID string, loadingID string) {
	o.cancelPollLocked()
	ctx, cancel := context.WithCancel(context.Background())
	h := &pollHandle{
		sessionID: sessionID,
		epoch:     o.epoch,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	o.poll = h
	log.Debug().Str("session_id", sessionID).Dur("interval", o.pollInterval).Msg("polling for results")
	go o.runPoll(ctx, h, loadingID)
}

func (o *Orchestrator) cancelPollLocked() {
	if o.poll == nil {
		return
	}
	o.poll.cancel()
	o.poll = nil
}

// runPoll polls immediately and then every pollInterval while the backend reports
// processing. There is no retry limit; cancellation is the only way out.
func (o *Orchestrator) runPoll(ctx context.Context, h *pollHandle, loadingID string) {
	defer close(h.done)
	defer h.cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		attempt++
		res, err := o.backend.PollResults(ctx, h.sessionID)
		if ctx.Err() != nil {
			return
		}
		if err == nil && res.Status == searchapi.StatusProcessing {
			log.Debug().Str("session_id", h.sessionID).Int("attempt", attempt).Msg("results still processing")
			timer.Reset(o.pollInterval)
			continue
		}
		o.settlePoll(h, loadingID, res, err)
		return
	}
}

func (o *Orchestrator) settlePoll(h *pollHandle, loadingID string, res *searchapi.PollResult, err error) {
	o.mu.Lock()
	defer o.unlock()
	if o.poll != h || o.epoch != h.epoch {
		log.Debug().Str("session_id", h.sessionID).Msg("dropping stale poll result")
		return
	}
	o.poll = nil
	o.removeLocked(loadingID)
	o.loading = false

	if err != nil {
		log.Error().Err(err).Str("session_id", h.sessionID).Msg("polling for results failed")
		o.appendLocked(messages.NewSystem(msgPollFailed))
		return
	}
	if res.Status == searchapi.StatusError {
		o.appendLocked(messages.NewSystem(searchErrorMessage(res.Error)))
		return
	}

	o.setStepLocked(StepResults)
	switch {
	case res.Report != nil:
		o.appendLocked(messages.NewReport(messages.ReportPayload{
			Report:      *res.Report,
			Images:      res.Images,
			Resources:   res.Resources,
			UserDetails: res.UserDetails,
		}))
	case len(res.Resources) > 0:
		o.appendLocked(messages.NewSystem(foundSourcesMessage(len(res.Resources))))
		for _, r := range res.Resources {
			o.appendLocked(messages.NewResource(r))
		}
	default:
		o.appendLocked(messages.NewSystem(msgNoResults))
	}
	log.Info().Str("session_id", h.sessionID).Int("resources", len(res.Resources)).Msg("search completed")

	o.emitCompletionLocked(&events.Completion{
		SessionID:   h.sessionID,
		Query:       o.log.FirstUserMessage(),
		Provider:    string(o.provider),
		Report:      res.Report,
		Images:      res.Images,
		Resources:   res.Resources,
		UserDetails: res.UserDetails,
	})
}
