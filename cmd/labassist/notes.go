package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/notes"
	"github.com/nstogner/labassist/pkg/notes/gemini"
)

func newNotesCmd(a *app) *cobra.Command {
	var provider, out string
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Generate ten exam study notes as validated JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if provider == "" {
				provider = a.cfg.Notes.Provider
			}
			if out == "" {
				out = a.cfg.Notes.Output
			}

			gen, err := a.notesGenerator(ctx, provider)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "📝 Generating notes with %s...\n", provider)
			set, err := notes.Generate(ctx, gen)
			if err != nil {
				return err
			}
			renderNotes(a.out, set)
			if err := notes.Save(out, set); err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("✅ Saved notes to "+out))
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "notes provider: openai or gemini (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default from config)")
	return cmd
}

func (a *app) notesGenerator(ctx context.Context, provider string) (notes.Generator, error) {
	switch provider {
	case "openai":
		return notes.OpenAI{Completions: a.client, Model: a.cfg.Notes.Model}, nil
	case "gemini":
		if a.cfg.Gemini.APIKey == "" {
			return nil, &domain.ConfigError{Key: "GEMINI_API_KEY", Reason: "required for the gemini provider"}
		}
		return gemini.New(ctx, a.cfg.Gemini.APIKey, a.cfg.Gemini.Model)
	default:
		return nil, &domain.ConfigError{Key: "provider", Reason: fmt.Sprintf("unknown provider %q", provider)}
	}
}

func renderNotes(w io.Writer, set *notes.Set) {
	for _, n := range set.Notes {
		heading := fmt.Sprintf("%d. %s", n.ID, n.Heading)
		if n.PageRef != nil {
			heading += dimStyle.Render(fmt.Sprintf(" (p. %d)", *n.PageRef))
		}
		fmt.Fprintln(w, senderStyle.Render(heading))
		fmt.Fprintln(w, "   "+n.Summary)
	}
}
