package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"kitsune-client/internal/chat"
	"kitsune-client/internal/model"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one message and print the reply as it streams",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	var (
		mu      sync.Mutex
		printed int
	)
	unsubscribe := a.chat.Subscribe(func(s chat.Snapshot) {
		reply := lastAssistantText(s.Messages)
		mu.Lock()
		defer mu.Unlock()
		if len(reply) > printed {
			fmt.Fprint(out, reply[printed:])
			printed = len(reply)
		}
	})
	defer unsubscribe()

	if err := a.chat.Send(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	if err := a.chat.Wait(ctx); err != nil {
		// interrupted; the exchange is abandoned
		return nil
	}

	// flush whatever the observer has not printed yet
	final := a.chat.Snapshot()
	reply := lastAssistantText(final.Messages)
	mu.Lock()
	if len(reply) > printed {
		fmt.Fprint(out, reply[printed:])
	}
	printed = len(reply)
	mu.Unlock()
	fmt.Fprintln(out)

	if final.Status == model.StatusError {
		return errors.Join(errors.New("exchange failed"), a.chat.Err())
	}
	return nil
}

func lastAssistantText(messages []model.ChatMessage) string {
	if n := len(messages); n > 0 && messages[n-1].Role == model.RoleAssistant {
		return messages[n-1].Text()
	}
	return ""
}
