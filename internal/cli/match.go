package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/match"
	"github.com/turumi/turumi-match/internal/ops"
)

type likeResult struct {
	Outcome string        `json:"outcome,omitempty"`
	Message string        `json:"message"`
	Record  *match.Record `json:"record,omitempty"`
}

func NewLikeCommand(app *App, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "like <userID>",
		Short: "Like someone; confirms the match if they already liked you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}

			outcome, err := match.NewReconciler(app.matches(), app.Logger).Like(cmd.Context(), id, target)
			msg := match.UserMessage(outcome, err)

			if opts.Format == "json" {
				res := likeResult{Message: msg}
				if outcome != nil {
					res.Outcome = outcome.Kind.String()
					res.Record = &outcome.Record
				}
				if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
					return werr
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			return reported(err)
		},
	}
}

func NewMatchesCommand(app *App, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "matches",
		Short: "List your match records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}
			records, err := app.matches().ListMatches(cmd.Context(), id)
			if err != nil {
				return err
			}
			visible := make([]match.Record, 0, len(records))
			for _, r := range records {
				if r.Involves(id.UserID) {
					visible = append(visible, r)
				}
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), visible)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWITH\tDIRECTION\tSTATUS")
			for _, r := range visible {
				dir := "outgoing"
				if r.ToUser == id.UserID {
					dir = "incoming"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.ID, r.Counterpart(id.UserID), dir, r.Status)
			}
			return tw.Flush()
		},
	}
}

func NewWatchCommand(app *App, opts *RootOptions) *cobra.Command {
	var serveOps bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for new likes and matches until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if serveOps && app.Config.OpsPort != "" {
				stop := startOps(app)
				defer stop()
			}

			w := match.NewWatcher(app.matches(), app.provider(), app.Config.WatchInterval, func(ev match.WatchEvent) {
				if opts.Format == "json" {
					_ = writeJSON(out, ev)
					return
				}
				fmt.Fprintln(out, describeEvent(ev))
			}, app.Logger)

			app.Logger.Info("watching for matches", zap.Duration("interval", app.Config.WatchInterval))
			err := w.Run(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&serveOps, "ops", true, "serve /health and /metrics on OPS_PORT")
	return cmd
}

func describeEvent(ev match.WatchEvent) string {
	switch ev.Type {
	case match.EventNewMatch:
		return fmt.Sprintf("New match with user %d!", ev.Other)
	case match.EventIncomingLike:
		return fmt.Sprintf("User %d likes you. Run `turumi like %d` to match.", ev.Other, ev.Other)
	case match.EventDoublePending:
		return fmt.Sprintf("You and user %d liked each other; liking again will complete the match.", ev.Other)
	default:
		return string(ev.Type)
	}
}

// startOps serves the ops router in the background and returns a stop func.
func startOps(app *App) func() {
	srv := &http.Server{
		Addr: ":" + app.Config.OpsPort,
		Handler: ops.NewRouter(ops.Options{
			Service: "turumi-watch",
			Breaker: app.Breaker,
			Logger:  app.Logger,
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		app.Logger.Info("ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("ops server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}
