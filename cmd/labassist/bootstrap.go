package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/lifecycle"
)

func newBootstrapCmd(a *app) *cobra.Command {
	var upload bool
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the assistant, or update it to match the configuration",
		Long: `Create the assistant on first run and record its id in .assistant.
Later runs update the recorded assistant in place with every configured field.

With --upload, the documents in the data directory (.pdf, .md, .txt) are
uploaded and indexed in a new vector store that the assistant searches.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg.Assistant

			if upload {
				fmt.Fprintf(a.out, "📤 Uploading documents from %s...\n", a.cfg.DataDir)
				p, err := lifecycle.NewProvisioner(a.client, a.client).Provision(ctx, a.cfg.DataDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "✅ Uploaded %d files into vector store %s\n", len(p.FileIDs), p.VectorStoreID)
				cfg.VectorStoreIDs = append(slices.Clone(cfg.VectorStoreIDs), p.VectorStoreID)
				if !slices.Contains(cfg.Tools, domain.ToolFileSearch) {
					cfg.Tools = append(slices.Clone(cfg.Tools), domain.ToolFileSearch)
				}
			}

			id, err := a.manager().Ensure(ctx, cfg)
			if err != nil {
				return err
			}
			verb := "Updated"
			if id.Created {
				verb = "Created"
			}
			fmt.Fprintln(a.out, okStyle.Render(fmt.Sprintf("✅ %s assistant: %s", verb, id.RemoteID)))
			fmt.Fprintln(a.out, dimStyle.Render(fmt.Sprintf("   model %s, tools %v, temperature %v, top_p %v",
				cfg.Model, cfg.Tools, cfg.Temperature, cfg.TopP)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&upload, "upload", false, "upload documents from the data directory into a new vector store")
	return cmd
}
