package cmds

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/clarinet/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newSearchCommand(rs *rootSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Open the interactive search UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchUI(cmd, rs)
		},
	}
}

func runSearchUI(cmd *cobra.Command, rs *rootSettings) error {
	provider, err := rs.currentProvider()
	if err != nil {
		return err
	}
	if err := rs.logToFile(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, rs.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	options := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		options = append(options, tea.WithAltScreen())
	} else {
		options = append(options, tea.WithOutput(os.Stderr))
	}

	p := tea.NewProgram(ui.NewModel(ctx, a.flow, a.credentials, provider), options...)
	if err := ui.AttachProgram(ctx, a.bus, p); err != nil {
		return err
	}
	_, err = p.Run()
	return err
}
