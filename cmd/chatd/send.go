package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chatd/internal/manager"
)

func sendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "send <chat-id> [message...]",
		Short:   "Send a message to a chat and stream the reply to stdout",
		Example: "  chatd send 1 Tell me a story.\n  chatd send 1   # continue without a new message",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}
			cfg, err := resolveConfig(opts)
			if err != nil {
				return err
			}
			// Ctrl+C cancels the generation; the partial reply is still saved.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, cfg, newLogger(cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			sub := a.ctrl.Buffer().Subscribe()
			defer sub.Close()
			g, err := a.ctrl.Send(ctx, chatID, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printed := streamReply(ctx, out, sub)
			res, err := g.Wait(context.WithoutCancel(ctx))
			if err != nil {
				return err
			}
			writeTail(out, printed, res.Text)
			fmt.Fprintln(out)
			return nil
		},
	}
}

// streamReply prints buffer updates until the generation is done and
// returns the text written so far.
func streamReply(ctx context.Context, w io.Writer, sub *manager.Subscription) string {
	var printed string
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return printed
		}
		printed = writeTail(w, printed, ev.Text)
		if ev.Done {
			return printed
		}
	}
}

// writeTail writes the part of text not printed yet. Text that no longer
// extends what was printed starts over on a new line.
func writeTail(w io.Writer, printed, text string) string {
	if strings.HasPrefix(text, printed) {
		_, _ = io.WriteString(w, text[len(printed):])
		return text
	}
	_, _ = io.WriteString(w, "\n"+text)
	return text
}
