package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewCredentialsGroupCommand groups the commands that manage per-provider credentials.
func NewCredentialsGroupCommand(rs *rootSettings) (*cobra.Command, error) {
	listCmd, err := NewCredentialsListCommand(rs)
	if err != nil {
		return nil, err
	}
	cobraListCmd, err := cli.BuildCobraCommand(listCmd)
	if err != nil {
		return nil, err
	}

	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Manage provider api keys, models and base urls",
	}
	cmd.AddCommand(
		cobraListCmd,
		newCredentialsSetCommand(rs),
		newCredentialsDeleteCommand(rs),
		newCredentialsFieldCommand(rs, "model", "Show or set the model used for a provider",
			(*credentials.Store).Model, (*credentials.Store).SetModel, (*credentials.Store).ResetModel),
		newCredentialsFieldCommand(rs, "base-url", "Show or set the base url used for a provider",
			(*credentials.Store).BaseURL, (*credentials.Store).SetBaseURL, (*credentials.Store).ResetBaseURL),
		newCredentialsEditCommand(rs),
	)
	return cmd, nil
}

func withStore(ctx context.Context, rs *rootSettings, f func(s *credentials.Store) error) error {
	if err := rs.load(); err != nil {
		return err
	}
	s, err := credentials.Open(ctx, rs.cfg.Credentials)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return f(s)
}

func providerArg(rs *rootSettings, args []string) (credentials.Provider, error) {
	if len(args) > 0 {
		return credentials.ParseProvider(args[0])
	}
	return rs.currentProvider()
}

func newCredentialsSetCommand(rs *rootSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "set [provider] [api-key]",
		Short: "Store the api key of a provider",
		Long:  "Store the api key of a provider. Without the key argument it is read from the terminal or stdin.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := providerArg(rs, args)
			if err != nil {
				return err
			}
			var key string
			if len(args) == 2 {
				key = args[1]
			} else {
				key, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("API key for %s: ", p.Label()))
				if err != nil {
					return err
				}
			}
			if strings.TrimSpace(key) == "" {
				return errors.New("the api key must not be empty, use `credentials delete` to remove it")
			}
			return withStore(cmd.Context(), rs, func(s *credentials.Store) error {
				if err := s.SetAPIKey(cmd.Context(), p, key); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved api key for %s (%s)\n", p.Label(), credentials.MaskValue(strings.TrimSpace(key)))
				return err
			})
		},
	}
}

// readSecret reads a line without echo when in is a terminal.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		_, _ = fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", errors.Wrap(err, "read api key")
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "read api key")
	}
	return strings.TrimSpace(line), nil
}

func newCredentialsDeleteCommand(rs *rootSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [provider]",
		Short: "Remove the api key of a provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := providerArg(rs, args)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), rs, func(s *credentials.Store) error {
				if err := s.DeleteAPIKey(cmd.Context(), p); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed api key for %s\n", p.Label())
				return err
			})
		},
	}
}

type (
	fieldGetter func(*credentials.Store, context.Context, credentials.Provider) (string, error)
	fieldSetter func(*credentials.Store, context.Context, credentials.Provider, string) error
	fieldReset  func(*credentials.Store, context.Context, credentials.Provider) error
)

// newCredentialsFieldCommand builds the model and base-url commands, which only
// differ in the store accessors they call.
func newCredentialsFieldCommand(rs *rootSettings, name, short string, get fieldGetter, set fieldSetter, reset fieldReset) *cobra.Command {
	var doReset bool
	cmd := &cobra.Command{
		Use:   name + " [provider] [value]",
		Short: short,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := providerArg(rs, args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withStore(ctx, rs, func(s *credentials.Store) error {
				switch {
				case doReset:
					if err := reset(s, ctx, p); err != nil {
						return err
					}
				case len(args) == 2:
					if err := set(s, ctx, p, args[1]); err != nil {
						return err
					}
				}
				v, err := get(s, ctx, p)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", p.Label(), name, v)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&doReset, "reset", false, "Go back to the provider default")
	return cmd
}

func newCredentialsEditCommand(rs *rootSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "edit [provider]",
		Short: "Edit the credentials of a provider in a form",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := providerArg(rs, args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withStore(ctx, rs, func(s *credentials.Store) error {
				c, err := s.Lookup(ctx, p)
				if err != nil {
					return err
				}
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("API key").
							Description("Leave empty to remove the key").
							EchoMode(huh.EchoModePassword).
							Value(&c.APIKey),
						huh.NewInput().
							Title("Model").
							Placeholder(p.DefaultModel()).
							Value(&c.Model),
						huh.NewInput().
							Title("Base URL").
							Placeholder(p.DefaultBaseURL()).
							Value(&c.BaseURL),
					).Title(p.Label()),
				).WithTheme(huh.ThemeCharm())
				if err := form.RunWithContext(ctx); err != nil {
					return errors.Wrap(err, "edit credentials")
				}
				if err := s.Save(ctx, c); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved credentials for %s\n", p.Label())
				return err
			})
		},
	}
}
