package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var SuitesCmd = &cobra.Command{
	Use:   "suites",
	Short: "List the available suites and their steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		settings, err := doc.Settings()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SUITE\tTARGET\tSTEPS\tDESCRIPTION")
		for _, name := range settings.Registry.Names() {
			d, _ := settings.Registry.Lookup(name)
			target := d.Target
			if target == "" {
				target = "backend"
			}
			if d.Managed {
				target += " (managed)"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, target, strings.Join(d.Steps, ","), d.Description)
		}
		return tw.Flush()
	},
}
