package cmds

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/atotto/clipboard"
	"github.com/go-go-golems/clarinet/pkg/events"
	"github.com/go-go-golems/clarinet/pkg/history"
	"github.com/go-go-golems/clarinet/pkg/persistence/historystore"
	"github.com/go-go-golems/clarinet/pkg/ui"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewHistoryGroupCommand groups the commands that browse completed searches.
func NewHistoryGroupCommand(rs *rootSettings) (*cobra.Command, error) {
	listCmd, err := NewHistoryListCommand(rs)
	if err != nil {
		return nil, err
	}
	cobraListCmd, err := cli.BuildCobraCommand(listCmd)
	if err != nil {
		return nil, err
	}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and export completed searches",
	}
	cmd.AddCommand(
		cobraListCmd,
		newHistoryShowCommand(rs),
		newHistoryExportCommand(rs),
		newHistoryDeleteCommand(rs),
		newHistoryWatchCommand(rs),
	)
	return cmd, nil
}

func withHistory(rs *rootSettings, f func(s historystore.SearchStore) error) error {
	if err := rs.load(); err != nil {
		return err
	}
	s, err := historystore.Open(rs.cfg.History)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return f(s)
}

func getRecord(ctx context.Context, s historystore.SearchStore, id string) (historystore.Record, error) {
	r, ok, err := s.Get(ctx, id)
	if err != nil {
		return r, err
	}
	if !ok {
		return r, errors.Errorf("no search with session id %s in history", id)
	}
	return r, nil
}

func newHistoryShowCommand(rs *rootSettings) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the report of a completed search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(rs, func(s historystore.SearchStore) error {
				r, err := getRecord(cmd.Context(), s, args[0])
				if err != nil {
					return err
				}
				md := history.ToMarkdown(r)
				if !raw && isatty.IsTerminal(os.Stdout.Fd()) {
					md = ui.RenderMarkdown(md, terminalWidth())
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal styling")
	return cmd
}

func newHistoryExportCommand(rs *rootSettings) *cobra.Command {
	var (
		format     string
		output     string
		copyExport bool
	)
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a completed search as markdown or html",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := history.ParseFormat(format)
			if err != nil {
				return err
			}
			return withHistory(rs, func(s historystore.SearchStore) error {
				r, err := getRecord(cmd.Context(), s, args[0])
				if err != nil {
					return err
				}
				doc, err := history.Export(r, f)
				if err != nil {
					return err
				}
				if copyExport {
					if err := clipboard.WriteAll(doc); err != nil {
						return errors.Wrap(err, "copy export to clipboard")
					}
				}
				if output == "" || output == "-" {
					_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
					return err
				}
				if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
					return errors.Wrapf(err, "write %s", output)
				}
				_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Export format (markdown, html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVarP(&copyExport, "copy", "c", false, "Also copy the export to the clipboard")
	return cmd
}

func newHistoryDeleteCommand(rs *rootSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Remove a search from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(rs, func(s historystore.SearchStore) error {
				ok, err := s.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return errors.Errorf("no search with session id %s in history", args[0])
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return err
			})
		},
	}
}

// newHistoryWatchCommand records searches completed by other clarinet processes
// that publish their flow events over redis.
func newHistoryWatchCommand(rs *rootSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Record searches published on the redis event stream until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rs.cfg.Events.RedisEnabled {
				return errors.New("history watch needs events.redis-enabled in the config")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return withHistory(rs, func(s historystore.SearchStore) error {
				bus, err := events.NewBus(ctx, rs.cfg.Events)
				if err != nil {
					return err
				}
				defer func() { _ = bus.Close() }()
				if err := history.NewRecorder(s).Attach(ctx, bus); err != nil {
					return err
				}
				log.Info().Str("redis", rs.cfg.Events.RedisAddr).Msg("recording searches from the event stream")
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Watching for completed searches, press Ctrl-C to stop.")
				<-ctx.Done()
				return nil
			})
		},
	}
}
