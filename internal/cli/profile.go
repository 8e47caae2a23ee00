package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/turumi/turumi-match/internal/profile"
)

func NewProfileCommand(app *App, opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [userID]",
		Short: "Show your profile or someone else's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}
			userID := id.UserID
			if len(args) == 1 {
				if userID, err = parseUserID(args[0]); err != nil {
					return err
				}
			}

			p, err := app.profiles().Get(cmd.Context(), id, userID)
			if err != nil {
				return err
			}
			return printProfile(cmd.OutOrStdout(), opts, p)
		},
	}

	cmd.AddCommand(newProfileEditCommand(app, opts))
	return cmd
}

func newProfileEditCommand(app *App, opts *RootOptions) *cobra.Command {
	var u profile.Update

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Change your name, age, gender or phone number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := false
			for _, name := range []string{"name", "age", "gender", "phone"} {
				changed = changed || cmd.Flags().Changed(name)
			}
			if !changed {
				return fmt.Errorf("nothing to change: pass --name, --age, --gender or --phone")
			}

			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}
			p, err := app.profiles().Update(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Profile updated")
			return printProfile(cmd.OutOrStdout(), opts, p)
		},
	}

	cmd.Flags().StringVar(&u.Name, "name", "", "display name")
	cmd.Flags().IntVar(&u.Age, "age", 0, "age (18 or older)")
	cmd.Flags().StringVar(&u.Gender, "gender", "", "gender")
	cmd.Flags().StringVar(&u.PhoneNumber, "phone", "", "phone number")
	return cmd
}

func printProfile(w io.Writer, opts *RootOptions, p *profile.Profile) error {
	if opts.Format == "json" {
		return writeJSON(w, p)
	}

	age := ""
	if p.Age > 0 {
		age = fmt.Sprint(p.Age)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", p.ID)
	fields := []struct{ label, value string }{
		{"Name:", p.Name},
		{"Email:", p.Email},
		{"Age:", age},
		{"Gender:", p.Gender},
		{"Phone:", p.PhoneNumber},
		{"Type:", p.UserType},
		{"Photo:", p.Photo()},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(tw, "%s\t%s\n", f.label, f.value)
		}
	}
	return tw.Flush()
}
