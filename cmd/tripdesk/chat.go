// README: chat command; talks to the dialogue engine from the terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"tripdesk/internal/dialogue"
)

var chatUser string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold a conversation with the engine on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		engine := a.newEngine(nil)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Type a message, /cancel to start over, Ctrl-D to quit.")

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			reply, err := engine.Handle(ctx, dialogue.Turn{UserKey: chatUser, UserName: "console", Text: text})
			if err != nil {
				return err
			}
			for _, m := range reply.Messages {
				fmt.Fprintln(out, m)
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "cli:local", "user key for the conversation")
}
