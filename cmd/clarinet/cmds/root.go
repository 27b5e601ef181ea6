package cmds

import (
	"io"

	"github.com/go-go-golems/clarinet/pkg/config"
	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/clarinet/pkg/logging"
	clay "github.com/go-go-golems/clay/pkg"
	glazedlogging "github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootSettings holds the configuration resolved before a command runs.
type rootSettings struct {
	cfg       *config.Config
	logCloser io.Closer
}

// NewRootCommand builds the clarinet command tree. Running it without a
// subcommand opens the interactive search UI.
func NewRootCommand() (*cobra.Command, error) {
	rs := &rootSettings{}

	rootCmd := &cobra.Command{
		Use:          "clarinet",
		Short:        "clarinet asks clarifying questions before it searches the web for you",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// reinitialize the logger now that --log-level and co are parsed
			if err := glazedlogging.InitLoggerFromViper(); err != nil {
				return err
			}
			return rs.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rs.logCloser != nil {
				_ = rs.logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchUI(cmd, rs)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("api-url", "", "Base URL of the search backend")
	flags.StringP("provider", "p", "", "LLM provider (openrouter, ollama)")

	if err := clay.InitViper(config.AppName, rootCmd); err != nil {
		return nil, err
	}
	if err := config.ConfigureEnv(viper.GetViper()); err != nil {
		return nil, err
	}
	if err := viper.BindPFlag(config.KeyAPIURL, flags.Lookup("api-url")); err != nil {
		return nil, err
	}
	if err := viper.BindPFlag(config.KeyProvider, flags.Lookup("provider")); err != nil {
		return nil, err
	}

	credentialsCmd, err := NewCredentialsGroupCommand(rs)
	if err != nil {
		return nil, err
	}
	historyCmd, err := NewHistoryGroupCommand(rs)
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(
		newSearchCommand(rs),
		newAskCommand(rs),
		newResultsCommand(rs),
		credentialsCmd,
		historyCmd,
		NewConfigGroupCommand(rs),
	)
	return rootCmd, nil
}

// load resolves the configuration once per run. Glazed subcommands call it
// from their Run methods as well.
func (rs *rootSettings) load() error {
	if rs.cfg != nil {
		return nil
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	cfg, err := config.FromViper(viper.GetViper(), dir)
	if err != nil {
		return err
	}
	rs.cfg = cfg
	log.Debug().Str("config", viper.ConfigFileUsed()).Str("api_url", cfg.API.URL).Msg("configuration loaded")
	return nil
}

// configPath is the config file viper read, or the default location when none was found.
func (rs *rootSettings) configPath() (string, error) {
	if p := viper.ConfigFileUsed(); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

// logToFile moves logging off the terminal for commands that draw on it,
// unless --log-file already chose a destination.
func (rs *rootSettings) logToFile() error {
	if viper.GetString("log-file") != "" || rs.cfg.UILogFile == "" {
		return nil
	}
	closer, err := logging.UseFile(rs.cfg.UILogFile, viper.GetString("log-format") == "json")
	if err != nil {
		return err
	}
	rs.logCloser = closer
	return nil
}

func (rs *rootSettings) currentProvider() (credentials.Provider, error) {
	if err := rs.load(); err != nil {
		return "", errors.Wrap(err, "load configuration")
	}
	return credentials.ParseProvider(rs.cfg.Provider)
}
