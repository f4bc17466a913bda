package cmd

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/crawl"
)

func newCrawlCmd(e *env) *cobra.Command {
	var (
		chapterStart bool
		resume       bool
		concurrency  int
		maxChapters  int
		outputDir    string
		delayMin     float64
		delayMax     float64
		useHeadless  bool
		serveStatus  bool
	)

	cmd := &cobra.Command{
		Use:   "crawl <start-url>",
		Short: "Fetch every chapter of a novel.",
		Long: `crawl builds the chapter catalog from the start URL, then fetches all
chapters that saved progress does not already cover. Pass a catalog
(table of contents) URL, or use --chapter with a chapter URL to
discover the catalog by following next links.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.cfg
			if concurrency > 0 {
				cfg.Crawler.Concurrency = concurrency
			}
			if maxChapters > 0 {
				cfg.Crawler.MaxChapters = maxChapters
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			if cmd.Flags().Changed("delay-min") {
				cfg.Crawler.DelayMinSec = delayMin
			}
			if cmd.Flags().Changed("delay-max") {
				cfg.Crawler.DelayMaxSec = delayMax
			}
			if useHeadless {
				cfg.Headless.Enabled = true
			}
			if serveStatus {
				cfg.Server.Enabled = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner, err := crawl.NewRunner(cfg, e.logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			report, err := runner.Run(ctx, crawl.Options{
				StartLocator: args[0],
				ChapterStart: chapterStart,
				Resume:       resume,
			})
			if err != nil {
				return err
			}

			e.logger.Info("run complete",
				zap.String("novel", report.Catalog.NovelName),
				zap.String("dir", report.NovelDir),
				zap.Int("fetched", report.Summary.Done),
				zap.Int("skipped", report.Plan.Skipped),
				zap.Int("failed_permanent", report.Summary.FailedPermanent()),
				zap.Int("failed_transient_exhausted", report.Summary.FailedTransientExhausted()),
			)
			if len(report.Summary.Failed) > 0 {
				indices := make([]int, 0, len(report.Summary.Failed))
				for i := range report.Summary.Failed {
					indices = append(indices, i)
				}
				sort.Ints(indices)
				for _, i := range indices {
					e.logger.Warn("chapter failed",
						zap.Int("index", i),
						zap.String("kind", string(report.Summary.Failed[i])),
					)
				}
				return fmt.Errorf("%d chapters failed; rerun to retry them", len(indices))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&chapterStart, "chapter", false, "start URL is a chapter page, walk next links")
	cmd.Flags().BoolVar(&resume, "resume", true, "reuse saved progress; --resume=false refetches everything")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "override configured worker count")
	cmd.Flags().IntVar(&maxChapters, "max-chapters", 0, "stop after this many chapters")
	cmd.Flags().StringVar(&outputDir, "output", "", "override configured output directory")
	cmd.Flags().Float64Var(&delayMin, "delay-min", 0, "minimum politeness delay in seconds")
	cmd.Flags().Float64Var(&delayMax, "delay-max", 0, "maximum politeness delay in seconds")
	cmd.Flags().BoolVar(&useHeadless, "headless", false, "render pages with a headless browser")
	cmd.Flags().BoolVar(&serveStatus, "serve-status", false, "serve /progress and /metrics while crawling")

	return cmd
}
