package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigGroupCommand groups the commands that inspect the configuration.
func NewConfigGroupCommand(rs *rootSettings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the clarinet configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration after defaults, file, .env and flags",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := rs.cfg.YAML()
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), s)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the path of the config file in use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := rs.configPath()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			},
		},
	)
	return cmd
}
