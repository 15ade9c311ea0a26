/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ssiautomations/website/internal/blog"
	"github.com/ssiautomations/website/log"
)

func newBlogCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blog",
		Short: "Inspect blog content",
	}

	var dir string
	list := &cobra.Command{
		Use:   "list",
		Short: "List blog posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := blog.NewConfig()
			if err := opts.load(cfg); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if dir != "" {
				cfg.Dir = dir
			}
			// No reason to cache for a single listing.
			cfg.CacheTTL = 0

			store, err := blog.NewStore(cfg, log.NewDisabledLogger(), blog.StoreOpts{})
			if err != nil {
				return err
			}
			posts, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list posts in %q: %w", cfg.Dir, err)
			}
			renderPostsTable(cmd.OutOrStdout(), posts)
			return nil
		},
	}
	list.Flags().StringVarP(&dir, "dir", "d", "", "posts directory (overrides blog.dir)")

	cmd.AddCommand(list)
	return cmd
}

func renderPostsTable(w io.Writer, posts []*blog.Post) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Date", "Slug", "Title", "Author"})
	for _, p := range posts {
		t.AppendRow(table.Row{p.Date, p.Slug, p.Title, p.Author})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(posts)})
	t.Render()
}
