package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nstogner/labassist/pkg/sweeper"
)

func newCleanupCmd(a *app) *cobra.Command {
	var (
		maxAge          float64
		deleteAssistant bool
		yes             bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete threads, assistant files and vector stores older than --max-age",
		Long: `Delete remote threads, files with purpose "assistants" and vector stores
created more than --max-age hours ago, then remove local scratch files.

The assistant is kept unless --delete-assistant is given. Current usage is shown
first and nothing is deleted until the prompt is answered with y.`,
		Example: "  labassist cleanup --max-age 1 --delete-assistant",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-age") {
				maxAge = a.cfg.Cleanup.MaxAgeHours
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}
			ctx := cmd.Context()
			sw := a.sweeper()

			u, err := sw.Survey(ctx)
			if err != nil {
				return err
			}
			renderUsage(a.out, u)

			fmt.Fprintf(a.out, "\n🤔 This will delete resources older than %s hours.\n", formatHours(maxAge))
			if deleteAssistant {
				fmt.Fprintln(a.out, warnStyle.Render("⚠️  WARNING: This will also delete the practice assistant!"))
			}
			if !yes {
				ok, err := confirm(a.in, a.out, "Continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, "❌ Cleanup cancelled")
					return nil
				}
			}

			report, err := sw.Sweep(ctx, sweeper.Options{
				MaxAge:           time.Duration(maxAge * float64(time.Hour)),
				IncludeAssistant: deleteAssistant,
			})
			if report != nil {
				renderReport(a.out, report)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "\n🎯 Cleanup Complete!")
			if n := report.FailureCount(); n > 0 {
				fmt.Fprintln(a.out, warnStyle.Render(fmt.Sprintf("⚠️  %d items could not be deleted", n)))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&maxAge, "max-age", 24, "delete resources older than this many hours (default from config)")
	f.BoolVar(&deleteAssistant, "delete-assistant", false, "also delete the recorded assistant")
	f.BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question. Only "y" or "yes" counts as agreement;
// end of input declines.
func confirm(in io.Reader, out io.Writer, message string) (bool, error) {
	fmt.Fprintf(out, "%s (y/N): ", message)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
