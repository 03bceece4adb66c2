package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nstogner/labassist/pkg/conversation"
	"github.com/nstogner/labassist/pkg/domain"
)

const questionPrompt = "❓ Your question (or 'quit'): "

// asker is the part of conversation.Engine the ask command drives.
type asker interface {
	Ask(ctx context.Context, assistant domain.Identity, question string, obs conversation.Observer) (*domain.Answer, error)
}

func newAskCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "ask [QUESTION...]",
		Short: "Ask the assistant a question and stream the answer with citations",
		Long: `Ask the assistant a question. Each question runs on a new thread and the
answer streams to the terminal as it is generated, with citations shown where
they arrive.

With a QUESTION the answer is printed and the command exits. Without one an
interactive session starts; type 'quit' or 'exit', or press Ctrl-C, to end it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			assistant, err := a.manager().Current()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			engine := a.engine()

			if len(args) > 0 {
				return askOnce(ctx, a.out, engine, assistant, strings.Join(args, " "))
			}
			if plain || !isTerminal(a.in) || !isTerminal(a.out) {
				return plainSession(ctx, a.in, a.out, engine, assistant)
			}
			if err := a.logToFile(a.tuiLogFile()); err != nil {
				return err
			}
			return runChat(ctx, engine, assistant)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "use line mode instead of the full-screen chat")
	return cmd
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// tuiLogFile keeps logs off the terminal while the chat UI draws on it.
func (a *app) tuiLogFile() string {
	if a.cfg.LogFile != "" {
		return a.cfg.LogFile
	}
	return "labassist.log"
}

func askOnce(ctx context.Context, out io.Writer, eng asker, assistant domain.Identity, question string) error {
	fmt.Fprintln(out, dimStyle.Render("🤖 Processing..."))
	fmt.Fprintln(out)
	answer, err := eng.Ask(ctx, assistant, question, printer{w: out})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	slog.Debug("Answer complete", "threadID", answer.ThreadID, "fragments", len(answer.Fragments), "citations", len(answer.Citations))
	return nil
}

// plainSession reads questions line by line until quit, end of input, or
// cancellation. A failed exchange is reported and the session continues.
// Cancellation ends the session with ctx.Err().
func plainSession(ctx context.Context, in io.Reader, out io.Writer, eng asker, assistant domain.Identity) error {
	fmt.Fprintln(out, titleStyle.Render("📚 Study Q&A Assistant"))

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	defer fmt.Fprintln(out, "\n🎯 Session ended")
	for {
		fmt.Fprint(out, "\n"+questionPrompt)
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return &domain.LocalIOError{Op: "read", Path: "stdin", Err: err}
					}
				default:
				}
				return nil
			}
			line = l
		}

		q := strings.TrimSpace(line)
		switch strings.ToLower(q) {
		case "quit", "exit":
			return nil
		case "":
			continue
		}

		err := askOnce(ctx, out, eng, assistant, q)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, domain.ErrNoAssistant):
			return err
		default:
			fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
		}
	}
}
