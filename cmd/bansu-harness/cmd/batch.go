package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mtr002/bansu-harness/internal/config"
	"github.com/mtr002/bansu-harness/internal/endpoint"
	"github.com/mtr002/bansu-harness/internal/harness"
	"github.com/mtr002/bansu-harness/internal/logger"
	"github.com/mtr002/bansu-harness/internal/outcome"
	"github.com/mtr002/bansu-harness/internal/worker"
)

var (
	manifestFile string
	outputDir    string
	concurrency  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run every job listed in a YAML manifest",
	Long: `Run the jobs of a manifest through a bounded pool of workers. Each job
runs with its own submitter, monitor and fetcher. The exit code is the code
of the first failed job in manifest order.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&manifestFile, "file", "f", "", "batch manifest (required)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write each artifact to <dir>/<job name>.cif")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent jobs, overrides the manifest")
	batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	m, err := config.LoadManifest(manifestFile)
	if err != nil {
		return err
	}

	ep, err := cfg.Endpoint()
	if err != nil {
		return err
	}
	if m.URL != "" && !cmd.Flags().Changed("url") {
		if ep, err = endpoint.Resolve(m.URL); err != nil {
			return err
		}
	}

	tasks := make([]worker.Task, len(m.Jobs))
	for i, j := range m.Jobs {
		req, err := m.Request(i)
		if err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
		tasks[i] = worker.Task{Index: i, Name: j.Name, Request: req}
	}

	workers := m.Concurrency
	if concurrency > 0 {
		workers = concurrency
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	publisher, closePublisher := connectPublisher(cfg.NatsURL)
	defer closePublisher()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	pool := worker.NewPool(func(ctx context.Context, task worker.Task) outcome.Outcome {
		opts := harness.Options{
			Endpoint:        ep,
			HTTPClient:      httpClient,
			Timeout:         cfg.Timeout,
			DigestAlgorithm: cfg.DigestAlgorithm,
			Name:            task.Name,
			Logger:          logger.Logger,
			Publisher:       publisher,
		}
		if outputDir != "" {
			opts.OutputPath = filepath.Join(outputDir, task.Name+".cif")
		}
		return harness.New(opts).Run(ctx, task.Request)
	}, workers)

	logger.Logger.Info().
		Str("manifest", manifestFile).
		Str("endpoint", ep.String()).
		Int("jobs", len(tasks)).
		Msg("Starting batch")

	results := pool.Run(ctx, tasks)
	renderSummary(cmd.OutOrStdout(), results)
	exitCode = worker.FirstFailure(results)

	writeMetrics(cfg.MetricsFile)
	return nil
}

func renderSummary(w io.Writer, results []worker.Result) {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Job ID", "Outcome", "Stage", "Exit", "Duration", "Digest")

	for _, r := range results {
		digest := "-"
		if a := r.Outcome.Artifact; a != nil && a.Digest != "" {
			digest = a.Algorithm + ":" + shorten(a.Digest, 16)
		}
		jobID := string(r.Outcome.JobID)
		if jobID == "" {
			jobID = "-"
		}
		table.Append(
			r.Task.Name,
			jobID,
			r.Outcome.Kind.String(),
			r.Outcome.Stage.String(),
			fmt.Sprintf("%d", r.ExitCode),
			r.Duration.Round(time.Millisecond).String(),
			digest,
		)
	}
	table.Render()
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
