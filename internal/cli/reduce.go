package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"draft-analyzer/internal/ingest"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/storage"
)

const reduceBatchSize = 500

var (
	reduceWatch    bool
	reduceInterval time.Duration
)

var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Merge archived warm JSONL files into the aggregates",
	Long: "Replays every warm archive file through the merger, then compresses it to cold storage.\n" +
		"Matches already in the database are skipped, so replaying a file twice is safe.",
	Args: cobra.NoArgs,
	RunE: withApp(runReduce),
}

func init() {
	reduceCmd.Flags().BoolVar(&reduceWatch, "watch", false, "keep running and reduce new warm files as they appear")
	reduceCmd.Flags().DurationVar(&reduceInterval, "interval", time.Minute, "rescan interval in watch mode")
}

func runReduce(cmd *cobra.Command, a *app, _ []string) error {
	root := a.cfg.Ingest.StoragePath
	if root == "" {
		return errors.New("no archive configured: set ingest.storage_path or BLOB_STORAGE_PATH")
	}
	warmDir := filepath.Join(root, "warm")
	coldDir := filepath.Join(root, "cold")

	ctx := cmd.Context()
	if reduceWatch {
		ctx = signalContext(a.logger)
	}

	// Replayed matches must not be archived a second time.
	svc, err := a.ingestService(ctx, nil, false)
	if err != nil {
		return err
	}

	r := &reducer{svc: svc, coldDir: coldDir, batchSize: reduceBatchSize, logger: a.logger}
	if reduceWatch {
		a.logger.Info("watching for warm files", "dir", warmDir)
		return storage.Watch(ctx, warmDir, reduceInterval, a.logger, func(path string) {
			if _, err := r.reduceFile(ctx, path); err != nil {
				a.logger.Warn("reduce failed", "file", path, "error", err)
			}
		})
	}

	files, err := storage.WarmFiles(warmDir)
	if err != nil {
		return fmt.Errorf("failed to list warm files: %w", err)
	}
	total := &ingest.BatchReport{}
	for _, f := range files {
		report, err := r.reduceFile(ctx, f)
		if err != nil {
			return err
		}
		total.Add(report)
	}
	PrintReport(cmd.OutOrStdout(), fmt.Sprintf("reduced %d files", len(files)), total)
	return nil
}

type reducer struct {
	svc       *ingest.Service
	coldDir   string
	batchSize int
	logger    *slog.Logger
}

// reduceFile merges one warm file in batches and moves it to cold storage.
// A file that vanished because it was already reduced is not an error.
func (r *reducer) reduceFile(ctx context.Context, path string) (*ingest.BatchReport, error) {
	report := &ingest.BatchReport{}
	var batch []model.Match
	flush := func() {
		if len(batch) > 0 {
			report.Add(r.svc.MergeBatch(ctx, batch))
			batch = batch[:0]
		}
	}

	res, err := storage.ReadMatches(path, func(m *model.Match) error {
		batch = append(batch, *m)
		if len(batch) >= r.batchSize {
			flush()
		}
		return ctx.Err()
	})
	if errors.Is(err, fs.ErrNotExist) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("failed to read %s: %w", path, err)
	}
	flush()

	// An interrupted file stays warm and is replayed next time.
	if err := ctx.Err(); err != nil {
		return report, err
	}

	coldPath, err := storage.CompressToCold(path, r.coldDir)
	if err != nil {
		return report, fmt.Errorf("failed to archive %s: %w", path, err)
	}
	r.logger.Info("warm file reduced", "file", filepath.Base(path), "cold", coldPath,
		"matches", res.Matches, "bad_lines", res.Skipped,
		"processed", report.Processed, "skipped", report.Skipped, "failed", len(report.Failures))
	return report, nil
}
