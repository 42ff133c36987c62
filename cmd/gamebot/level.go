package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/gamebot/internal/domain/level"
)

func levelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "level <exp>...",
		Short: "Print the level reached by each experience total",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EXP\tLEVEL\tNEXT LEVEL AT")
			for _, arg := range args {
				exp, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || exp < 0 {
					return fmt.Errorf("experience must be a non-negative integer: %q", arg)
				}
				lvl := level.Of(exp)
				fmt.Fprintf(tw, "%d\t%d\t%d\n", exp, lvl, level.Threshold(lvl+1))
			}
			return tw.Flush()
		},
	}
}
