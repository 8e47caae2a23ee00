package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/turumi/turumi-match/internal/housing"
)

func NewHousingCommand(app *App, opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "housing",
		Short: "List a room or look at room listings",
	}

	cmd.AddCommand(newHousingCreateCommand(app, opts))
	cmd.AddCommand(newHousingGetCommand(app, opts))
	cmd.AddCommand(newHousingListCommand(app, opts))
	return cmd
}

func newHousingCreateCommand(app *App, opts *RootOptions) *cobra.Command {
	var in housing.NewListing

	cmd := &cobra.Command{
		Use:   "create",
		Short: "List a room you offer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}
			l, err := app.listings().Create(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), l)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Housing %d listed.\n", l.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Address, "address", "", "street address")
	cmd.Flags().IntVar(&in.Rent, "rent", 0, "monthly rent")
	cmd.Flags().IntVar(&in.Size, "size", 0, "size in square meters")
	cmd.Flags().IntVar(&in.AvailableRoom, "rooms", 1, "rooms available")
	cmd.Flags().IntVar(&in.RegionID, "region", 0, "region id")
	cmd.Flags().IntVar(&in.ComunaID, "comuna", 0, "comuna id")
	cmd.Flags().BoolVar(&in.PetsAllowed, "pets", false, "pets allowed")
	cmd.Flags().BoolVar(&in.SmokingAllowed, "smoking", false, "smoking allowed")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("rent")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func newHousingGetCommand(app *App, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <housingID>",
		Short: "Show one listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			housingID, err := parseUserID(args[0])
			if err != nil {
				return fmt.Errorf("invalid housing id %q", args[0])
			}
			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}
			l, err := app.listings().Get(cmd.Context(), id, housingID)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), l)
			}
			return printListings(cmd.OutOrStdout(), []housing.Listing{*l})
		},
	}
}

func newHousingListCommand(app *App, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [userID]",
		Short: "List the rooms a user offers; yours by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}
			owner := id.UserID
			if len(args) == 1 {
				if owner, err = parseUserID(args[0]); err != nil {
					return err
				}
			}

			list, err := app.listings().List(cmd.Context(), id, owner)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No listings.")
				return nil
			}
			return printListings(cmd.OutOrStdout(), list)
		},
	}
}

func printListings(w io.Writer, list []housing.Listing) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNER\tADDRESS\tRENT\tSIZE\tROOMS\tPETS\tSMOKING")
	for _, l := range list {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%d\t%s\t%s\n",
			l.ID, l.OwnerID, l.Address, l.Rent, l.Size, l.AvailableRoom, yesNo(l.PetsAllowed), yesNo(l.SmokingAllowed))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
