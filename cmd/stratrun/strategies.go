package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stratrun/stratrun/internal/strategy"
)

func newStrategiesCmd() *cobra.Command {
	var byCategory bool
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List the strategy catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptors := strategy.NewRegistry().List()
			if byCategory {
				sort.SliceStable(descriptors, func(i, j int) bool {
					return descriptors[i].Category < descriptors[j].Category
				})
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tCATEGORY\tNAME")
			for _, d := range descriptors {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Key, d.Category, d.DisplayName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&byCategory, "by-category", false, "group output by category")
	return cmd
}
