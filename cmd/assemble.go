package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/crawl"
)

func newAssembleCmd(e *env) *cobra.Command {
	var (
		out     string
		partial bool
	)

	cmd := &cobra.Command{
		Use:   "assemble <start-url>",
		Short: "Stitch fetched chapters into one document.",
		Long: `assemble reads the saved progress for the given start URL and writes
the chapters in catalog order to a single markdown file. By default an
incomplete crawl is an error; --partial writes the contiguous fetched
prefix instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := crawl.Assemble(cmd.Context(), e.cfg, args[0], out, partial, e.logger)
			if err != nil {
				return err
			}
			e.logger.Info("document written",
				zap.String("path", res.Path),
				zap.Int("chapters", res.Included),
				zap.Int("missing", res.Missing),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default inside the novel directory)")
	cmd.Flags().BoolVar(&partial, "partial", false, "assemble the fetched prefix even if chapters are missing")

	return cmd
}
