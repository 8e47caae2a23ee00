package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/chat"
)

func NewChatCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <userID>",
		Short: "Chat with a match; one line per message, EOF to quit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			id, err := app.current(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			client, err := chat.Dial(ctx, app.Config.APIBaseURL, id, app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			done := make(chan error, 1)
			go func() {
				done <- client.Run(ctx, func(f chat.Frame) {
					printFrame(out, f, id.UserID, peer)
				})
			}()

			if err := sendLines(cmd.InOrStdin(), client, peer); err != nil {
				app.Logger.Warn("chat input ended", zap.Error(err))
			}
			cancel()

			if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func sendLines(in io.Reader, client *chat.Client, peer int64) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := client.Send(peer, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func printFrame(out io.Writer, f chat.Frame, me, peer int64) {
	switch f.Type {
	case chat.TypeChatMessage:
		msg, err := f.Chat()
		if err != nil {
			return
		}
		// Our own echoes and other conversations are not shown.
		if msg.From != peer || msg.To != me {
			return
		}
		fmt.Fprintf(out, "[%d] %s\n", msg.From, msg.Text)
	case chat.TypeNewMatch:
		if r, err := f.Match(); err == nil {
			fmt.Fprintf(out, "* new match with user %d\n", r.Counterpart(me))
		}
	case chat.TypeError:
		fmt.Fprintf(out, "! %s\n", f.ErrorText())
	}
}
