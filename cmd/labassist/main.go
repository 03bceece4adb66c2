// Command labassist manages a remote study assistant: it creates or updates
// the assistant, answers questions with streamed citations, generates exam
// notes, and sweeps stale resources.
//
// Usage:
//
//	export OPENAI_API_KEY="your-api-key"
//	labassist bootstrap --upload
//	labassist ask
//	labassist cleanup --max-age 24
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nstogner/labassist/pkg/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var cfgErr *domain.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
