package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewFeedCommand(app *App, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "List recommended roommates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}
			recs, err := app.profiles().Recommendations(cmd.Context(), id)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recommendations right now.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tAGE\tGENDER\tPHOTO")
			for _, p := range recs {
				age := "-"
				if p.Age > 0 {
					age = fmt.Sprint(p.Age)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, age, p.Gender, p.Photo())
			}
			return tw.Flush()
		},
	}
}
