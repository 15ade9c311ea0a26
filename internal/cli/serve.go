/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssiautomations/website/internal/site"
	"github.com/ssiautomations/website/internal/version"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/service"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := site.NewConfig()
			if err := opts.load(cfg); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *site.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, closeLogger := log.NewLogger(cfg.Log)
	defer closeLogger()

	logger.Info("starting website", log.String("version", version.Get().Version))

	s, err := site.New(ctx, cfg, logger, site.Opts{})
	if err != nil {
		logger.Error("website assembling failed", log.Error(err))
		return err
	}
	return service.New(logger, s).StartContext(ctx)
}
