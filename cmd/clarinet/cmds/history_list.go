package cmds

import (
	"context"
	"time"

	"github.com/go-go-golems/clarinet/pkg/persistence/historystore"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
)

type HistoryListCommand struct {
	*cmds.CommandDescription
	rs *rootSettings
}

type HistoryListSettings struct {
	ProviderFilter string `glazed:"provider-filter"`
	Contains       string `glazed:"contains"`
	Since          string `glazed:"since"`
	Limit          int    `glazed:"limit"`
}

func NewHistoryListCommand(rs *rootSettings) (*HistoryListCommand, error) {
	glazedLayer, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsLayer, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"list",
		cmds.WithShort("List completed searches, newest first"),
		cmds.WithLong("List completed searches from the history store. Use --output json or csv for scripting."),
		cmds.WithFlags(
			fields.New(
				"provider-filter",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Only searches run with this provider"),
			),
			fields.New(
				"contains",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Only searches whose query contains this text"),
			),
			fields.New(
				"since",
				fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Only searches newer than this duration, e.g. 72h"),
			),
			fields.New(
				"limit",
				fields.TypeInteger,
				fields.WithDefault(0),
				fields.WithHelp("Maximum number of searches to list (0 = store default)"),
			),
		),
		cmds.WithSections(glazedLayer, commandSettingsLayer),
	)

	return &HistoryListCommand{CommandDescription: desc, rs: rs}, nil
}

func (c *HistoryListCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &HistoryListSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	q := historystore.Query{
		Provider: s.ProviderFilter,
		Contains: s.Contains,
		Limit:    s.Limit,
	}
	if s.Since != "" {
		since, err := time.ParseDuration(s.Since)
		if err != nil {
			return errors.Wrapf(err, "invalid --since %q", s.Since)
		}
		q.SinceMs = time.Now().Add(-since).UnixMilli()
	}

	return withHistory(c.rs, func(store historystore.SearchStore) error {
		recs, err := store.List(ctx, q)
		if err != nil {
			return err
		}
		for _, r := range recs {
			row := types.NewRow(
				types.MRP("session_id", r.SessionID),
				types.MRP("created_at", r.CreatedAt().Format("2006-01-02 15:04")),
				types.MRP("provider", r.Provider),
				types.MRP("title", r.Title()),
				types.MRP("query", r.Query),
				types.MRP("sources", len(r.Resources)),
			)
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ cmds.GlazeCommand = &HistoryListCommand{}
