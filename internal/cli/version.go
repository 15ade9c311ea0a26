/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssiautomations/website/internal/version"
)

func newVersionCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout(), version.Get(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printVersion(w io.Writer, info version.Info, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	if _, err := fmt.Fprintf(w, "website %s\n", info.Version); err != nil {
		return err
	}
	if info.Revision != "" {
		revision := info.Revision
		if info.Modified {
			revision += " (modified)"
		}
		if _, err := fmt.Fprintf(w, "Revision: %s\n", revision); err != nil {
			return err
		}
	}
	if info.GoVersion != "" {
		if _, err := fmt.Fprintf(w, "Go: %s\n", info.GoVersion); err != nil {
			return err
		}
	}
	return nil
}
