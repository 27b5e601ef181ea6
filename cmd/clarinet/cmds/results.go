package cmds

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newResultsCommand(rs *rootSettings) *cobra.Command {
	var raw, copyReport bool
	cmd := &cobra.Command{
		Use:   "results <session-id>",
		Short: "Poll an existing search session until its results are ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := rs.currentProvider()
			if err != nil {
				return err
			}
			if err := rs.logToFile(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, rs.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			pr := newNotePrinter(os.Stderr)
			a.flow.ResumeSearch(args[0], provider)
			pr.print(a.flow.Snapshot().Messages)
			if err := waitWithProgress(ctx, a.flow, os.Stderr, rs.cfg.API.PollInterval); err != nil {
				return err
			}
			st := a.flow.Snapshot()
			pr.print(st.Messages)

			md, ok := resultMarkdown(st.Messages)
			if !ok {
				return lastNoteError(st.Messages, "search returned no results")
			}
			return writeResult(cmd.OutOrStdout(), md, raw, copyReport)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal styling")
	cmd.Flags().BoolVarP(&copyReport, "copy", "c", false, "Copy the report markdown to the clipboard")
	return cmd
}
