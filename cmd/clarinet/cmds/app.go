package cmds

import (
	"context"

	"github.com/go-go-golems/clarinet/pkg/config"
	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/clarinet/pkg/events"
	"github.com/go-go-golems/clarinet/pkg/flow"
	"github.com/go-go-golems/clarinet/pkg/history"
	"github.com/go-go-golems/clarinet/pkg/persistence/historystore"
	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// app is everything a search command needs, built from the loaded config.
type app struct {
	cfg         *config.Config
	credentials *credentials.Store
	client      *searchapi.Client
	bus         *events.Bus
	history     historystore.SearchStore
	flow        *flow.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	client, err := searchapi.NewClient(cfg.API.URL, searchapi.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, client: client}

	creds, err := credentials.Open(ctx, cfg.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "open credentials")
	}
	a.credentials = creds

	store, err := historystore.Open(cfg.History)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "open history")
	}
	a.history = store

	bus, err := events.NewBus(ctx, cfg.Events)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.bus = bus

	a.flow = flow.New(client, creds,
		flow.WithEventSink(events.Fanout(history.NewRecorder(store), bus)),
		flow.WithPollInterval(cfg.API.PollInterval),
		flow.WithSearchMode(cfg.API.SearchMode),
	)
	return a, nil
}

// Close stops polling first so nothing publishes into a closed bus.
func (a *app) Close() {
	if a.flow != nil {
		a.flow.Close()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			log.Warn().Err(err).Msg("closing event bus")
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Warn().Err(err).Msg("closing history store")
		}
	}
	if a.credentials != nil {
		if err := a.credentials.Close(); err != nil {
			log.Warn().Err(err).Msg("closing credentials store")
		}
	}
}
