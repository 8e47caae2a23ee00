package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/logger"
	"github.com/turumi/turumi-match/internal/match"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the turumi command tree on top of app.
func NewRootCommand(app *App) *cobra.Command {
	opts := &RootOptions{}
	app.Logger = logger.OrNop(app.Logger)

	cmd := &cobra.Command{
		Use:   "turumi",
		Short: "Turumi roommate matching client",
		Long:  "Like people, confirm matches, watch for new ones and chat with your matches.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLoginCommand(app))
	cmd.AddCommand(NewLogoutCommand(app))
	cmd.AddCommand(NewRefreshCommand(app))
	cmd.AddCommand(NewLikeCommand(app, opts))
	cmd.AddCommand(NewMatchesCommand(app, opts))
	cmd.AddCommand(NewFeedCommand(app, opts))
	cmd.AddCommand(NewWatchCommand(app, opts))
	cmd.AddCommand(NewChatCommand(app))
	cmd.AddCommand(NewRegisterCommand(app))
	cmd.AddCommand(NewProfileCommand(app, opts))
	cmd.AddCommand(NewHousingCommand(app, opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportedError marks a failure the command already explained to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// Execute runs cmd and reports a failure on its error stream. The full error
// goes to the log only; remote failures are shown as the retry prompt.
func Execute(ctx context.Context, cmd *cobra.Command, log *zap.Logger) error {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	logger.OrNop(log).Error("command failed", zap.Error(err))

	var r *reportedError
	if errors.As(err, &r) {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", displayError(err))
	return err
}

// displayError hides the classification of remote failures.
func displayError(err error) string {
	for _, kind := range []error{
		match.ErrAuth, match.ErrTransport, match.ErrValidation,
		match.ErrNotFound, match.ErrConflict, match.ErrInvalidLike,
	} {
		if errors.Is(err, kind) {
			return match.UserMessage(nil, err)
		}
	}
	return err.Error()
}
