package cmds

import (
	"context"

	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
)

type CredentialsListCommand struct {
	*cmds.CommandDescription
	rs *rootSettings
}

type CredentialsListSettings struct {
	Show bool `glazed:"show"`
}

func NewCredentialsListCommand(rs *rootSettings) (*CredentialsListCommand, error) {
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
		cmds.WithShort("List the stored credentials of every provider"),
		cmds.WithFlags(
			fields.New(
				"show",
				fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Print api keys unmasked"),
			),
		),
		cmds.WithSections(glazedLayer, commandSettingsLayer),
	)

	return &CredentialsListCommand{CommandDescription: desc, rs: rs}, nil
}

func (c *CredentialsListCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *values.Values,
	gp middlewares.Processor,
) error {
	s := &CredentialsListSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}

	return withStore(ctx, c.rs, func(store *credentials.Store) error {
		all, err := store.All(ctx)
		if err != nil {
			return err
		}
		for _, p := range credentials.Providers() {
			cr := all[p]
			key := credentials.MaskValue(cr.APIKey)
			if s.Show {
				key = cr.APIKey
			}
			row := types.NewRow(
				types.MRP("provider", string(p)),
				types.MRP("label", p.Label()),
				types.MRP("api_key", key),
				types.MRP("model", cr.Model),
				types.MRP("base_url", cr.BaseURL),
			)
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ cmds.GlazeCommand = &CredentialsListCommand{}
