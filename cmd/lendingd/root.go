package main

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/lending/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "lendingd",
		Short: "Library lending service",
		Long: `lendingd serves the lending HTTP API over a document store and runs its maintenance tasks.

Settings come from the YAML file given by --config and from LENDING_* environment variables,
which take precedence over the file.

Examples:
  lendingd serve --config lending.yaml
  lendingd migrate
  lendingd seed --file library.yaml
  lendingd reconcile`,
		SilenceUsage: true,
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path of the YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "overrides log.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newReconcileCommand(opts),
	)

	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	v := config.NewViper()

	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, errors.Join(config.ErrReadingConfigFailed, err)
		}
	}

	if o.logLevel != "" {
		v.Set("log.level", o.logLevel)
	}

	return config.LoadWithViper(v)
}
