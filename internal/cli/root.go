/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package cli implements the website command-line interface.
package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ssiautomations/website/config"
)

// EnvVarsPrefix is the prefix of environment variables overriding configuration keys
// (e.g. WEBSITE_RATELIMIT_WINDOW for rateLimit.window).
const EnvVarsPrefix = "WEBSITE"

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "config.yml"

type rootOptions struct {
	configPath string
	envFile    string
}

// NewRootCommand creates the root command with all subcommands.
// Running it without a subcommand starts the server.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	serve := newServeCommand(opts)

	root := &cobra.Command{
		Use:           "website",
		Short:         "SSI Automations website server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(opts.envFile)
		},
		RunE: serve.RunE,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", DefaultConfigPath,
		"path to the configuration file (optional)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env",
		"dotenv file loaded into the environment before configuration (optional)")

	root.AddCommand(serve, newBlogCommand(opts), newVersionCommand())
	return root
}

// loadEnvFile does not override variables that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func (o *rootOptions) load(cfg config.Config, cfgs ...config.Config) error {
	return config.NewDefaultLoader(EnvVarsPrefix).LoadFromOptionalFile(o.configPath, cfg, cfgs...)
}
