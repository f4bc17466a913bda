package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novelgrab/novelgrab/internal/crawl"
	"github.com/novelgrab/novelgrab/internal/novel"
)

func newStatusCmd(e *env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <start-url>",
		Short: "Show saved crawl progress for a novel.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := crawl.Status(cmd.Context(), e.cfg, args[0])
			if errors.Is(err, novel.ErrProgressNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved progress for this URL")
				return nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "novel:     %s\n", st.NovelName)
			if st.Author != "" {
				fmt.Fprintf(out, "author:    %s\n", st.Author)
			}
			fmt.Fprintf(out, "chapters:  %d total, %d done, %d failed\n",
				st.TotalChapters, st.Completed(), st.Failed())
			fmt.Fprintf(out, "updated:   %s\n", st.LastUpdated.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw progress state as JSON")

	return cmd
}
