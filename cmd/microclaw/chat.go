package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oraraka-deko/microclaw/claw"
	"github.com/oraraka-deko/microclaw/device"
)

func NewChatCmd() *cobra.Command {
	var showThought bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message, or start an interactive session when no message is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(getGlobalOptions(cmd.Context()), slog.Default(), device.HostLink{})
			if err != nil {
				return err
			}
			defer a.runner.Wait()

			s := &chatSession{agent: a.agent, out: cmd.OutOrStdout(), showThought: showThought, window: claw.DefaultHistoryWindow}
			if len(args) > 0 {
				s.send(cmd, strings.Join(args, " "))
				return nil
			}
			return s.repl(cmd, cmd.InOrStdin())
		},
	}

	cmd.Flags().BoolVar(&showThought, "thought", false, "print the agent's thought and tool result")
	return cmd
}

type turnHandler interface {
	Handle(ctx context.Context, in claw.TurnInput) claw.Output
}

type chatSession struct {
	agent       turnHandler
	out         io.Writer
	history     []claw.HistoryEntry
	window      int
	showThought bool
}

func (s *chatSession) send(cmd *cobra.Command, text string) {
	out := s.agent.Handle(cmd.Context(), claw.TurnInput{Text: text, History: s.history})
	if s.showThought {
		if out.Thought != "" {
			fmt.Fprintf(s.out, "(thought) %s\n", out.Thought)
		}
		if out.Tool != "" {
			fmt.Fprintf(s.out, "(tool) %s -> %s\n", out.Tool, out.ToolResult)
		}
	}
	fmt.Fprintln(s.out, out.Reply)

	s.history = append(s.history,
		claw.HistoryEntry{Sender: claw.SenderUser, Text: text},
		claw.HistoryEntry{Sender: claw.SenderAgent, Text: out.Reply, ToolResult: out.ToolResult},
	)
	if len(s.history) > s.window {
		s.history = s.history[len(s.history)-s.window:]
	}
}

func (s *chatSession) repl(cmd *cobra.Command, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "exit", "quit":
			return nil
		default:
			s.send(cmd, line)
		}
		fmt.Fprint(s.out, "> ")
	}
	return scanner.Err()
}
