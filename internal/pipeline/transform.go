package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zonemap/schoolzone-mapper/internal/common"
	"github.com/zonemap/schoolzone-mapper/internal/extract"
	"github.com/zonemap/schoolzone-mapper/internal/output"
)

// TransformStage runs LLM extraction over the .txt files produced by the
// update stage, streaming school records into per-document JSON files.
type TransformStage struct {
	cfg       *common.Config
	extractor *extract.Extractor
	workers   int
	logger    *slog.Logger

	// ShouldStop is polled between documents; when it reports true the
	// batch finishes the in-flight documents and stops scheduling new
	// ones. Nil means run to completion.
	ShouldStop func() bool

	// DryRun lists the documents that would be extracted without calling
	// the model or writing outputs.
	DryRun bool
}

func NewTransformStage(cfg *common.Config, extractor *extract.Extractor, workers int, logger *slog.Logger) *TransformStage {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &TransformStage{cfg: cfg, extractor: extractor, workers: workers, logger: logger}
}

// Run processes every text file that does not already have a JSON output.
// Documents are independent; with workers > 1 they are extracted
// concurrently under an errgroup limit, and each document's records keep
// their in-response order.
func (s *TransformStage) Run(ctx context.Context) (*RunSummary, error) {
	summary := NewRunSummary("transform")

	paths, err := listTextFiles(s.cfg.Paths.TextDir)
	if err != nil {
		return summary, fmt.Errorf("list text files: %w", err)
	}
	s.logger.Info("transform.start", "text_dir", s.cfg.Paths.TextDir, "files", len(paths), "workers", s.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, path := range paths {
		if err := gctx.Err(); err != nil {
			break
		}
		if s.ShouldStop != nil && s.ShouldStop() {
			s.logger.Info("transform.stopping", "reason", "interrupt requested")
			break
		}

		jsonPath := s.jsonPath(path)
		if _, err := os.Stat(jsonPath); err == nil {
			summary.Add(ItemResult{File: path, Status: StatusSkipped, Output: jsonPath})
			s.logger.Info("transform.skip_existing", "path", path, "output", jsonPath)
			continue
		}

		if s.DryRun {
			s.logger.Info("transform.would_process", "path", path, "output", jsonPath)
			summary.Add(ItemResult{File: path, Status: StatusOK, Output: jsonPath})
			continue
		}

		path := path
		g.Go(func() error {
			start := time.Now()
			count, err := s.RunFile(gctx, path, false)
			item := ItemResult{File: path, Records: count, ElapsedMS: time.Since(start).Milliseconds()}
			if err != nil {
				item.Status = StatusFailed
				item.Error = err.Error()
				s.logger.Error("transform.file_failed", "path", path, "error", err)
			} else {
				item.Status = StatusOK
				item.Output = s.jsonPath(path)
			}
			summary.Add(item)

			// be polite to the provider between documents
			select {
			case <-gctx.Done():
			case <-time.After(s.cfg.LLM.FileDelay):
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Finish()
	if !s.DryRun {
		if err := summary.Write(s.cfg.Paths.JSONDir); err != nil {
			s.logger.Warn("transform.summary_write_failed", "error", err)
		}
	}
	s.logger.Info("transform.done", "total", summary.Total, "succeeded", summary.Succeeded, "skipped", summary.Skipped, "failed", summary.Failed, "elapsed_ms", summary.ElapsedMS)
	return summary, ctx.Err()
}

// RunFile extracts one text file into its JSON document. With force false
// an existing output is an error; the batch path checks existence first.
// Records are flushed as they arrive so an interrupted run leaves a
// readable prefix of the document.
func (s *TransformStage) RunFile(ctx context.Context, path string, force bool) (int, error) {
	jsonPath := s.jsonPath(path)
	if !force {
		if _, err := os.Stat(jsonPath); err == nil {
			return 0, fmt.Errorf("output %s already exists (use force to overwrite)", jsonPath)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, fmt.Errorf("empty text file %s", path)
	}

	w, err := output.NewDocumentWriter(jsonPath, filepath.Base(path))
	if err != nil {
		return 0, err
	}

	count, exErr := s.extractor.ExtractStream(ctx, text, w.WriteRecord)
	if exErr != nil && count == 0 {
		// nothing usable came back; do not leave an empty document behind
		_ = w.Abort()
		return 0, exErr
	}
	if err := w.Close(); err != nil {
		return count, fmt.Errorf("finalize %s: %w", jsonPath, err)
	}
	if exErr != nil {
		return count, fmt.Errorf("extraction incomplete after %d records: %w", count, exErr)
	}
	return count, nil
}

func (s *TransformStage) jsonPath(textPath string) string {
	base := filepath.Base(textPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(s.cfg.Paths.JSONDir, stem+".json")
}

func listTextFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".txt") || strings.HasPrefix(name, ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}
