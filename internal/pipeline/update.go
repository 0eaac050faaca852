package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zonemap/schoolzone-mapper/internal/common"
	"github.com/zonemap/schoolzone-mapper/internal/ingest"
	"github.com/zonemap/schoolzone-mapper/internal/parser"
)

// UpdateStage turns raw source documents into plain-text files, one .txt
// per document, ready for LLM extraction.
type UpdateStage struct {
	cfg      *common.Config
	registry *parser.Registry
	dryRun   bool
	logger   *slog.Logger

	// stems seen this run, used for filename-conflict prefixing
	seen map[string]string
}

func NewUpdateStage(cfg *common.Config, registry *parser.Registry, dryRun bool, logger *slog.Logger) *UpdateStage {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = parser.NewRegistry()
	}
	return &UpdateStage{
		cfg:      cfg,
		registry: registry,
		dryRun:   dryRun,
		logger:   logger,
		seen:     make(map[string]string),
	}
}

// Run walks the input directory and extracts text from every supported
// document. Per-file failures are recorded in the summary and never abort
// the batch.
func (s *UpdateStage) Run(ctx context.Context) (*RunSummary, error) {
	summary := NewRunSummary("update")

	paths, err := ingest.ListDocuments(s.cfg.Paths.InputDir, s.registry.Supports)
	if err != nil {
		return summary, fmt.Errorf("list documents: %w", err)
	}
	s.logger.Info("update.start", "input_dir", s.cfg.Paths.InputDir, "files", len(paths), "dry_run", s.dryRun)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		start := time.Now()
		outPath, err := s.RunFile(ctx, path)
		item := ItemResult{File: path, ElapsedMS: time.Since(start).Milliseconds()}
		if err != nil {
			item.Status = StatusFailed
			item.Error = err.Error()
			s.logger.Error("update.file_failed", "path", path, "error", err)
		} else {
			item.Status = StatusOK
			item.Output = outPath
		}
		summary.Add(item)
	}

	summary.Finish()
	if !s.dryRun {
		if err := summary.Write(s.cfg.Paths.TextDir); err != nil {
			s.logger.Warn("update.summary_write_failed", "error", err)
		}
	}
	s.logger.Info("update.done", "total", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed, "elapsed_ms", summary.ElapsedMS)
	return summary, nil
}

// RunFile extracts one document and writes its .txt. Returns the output
// path; in dry-run mode the file is parsed but nothing is written.
func (s *UpdateStage) RunFile(ctx context.Context, path string) (string, error) {
	p, err := s.registry.ForPath(path)
	if err != nil {
		return "", err
	}
	text, err := p.Parse(ctx, path)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}

	outPath := filepath.Join(s.cfg.Paths.TextDir, s.outputName(path))
	if s.dryRun {
		s.logger.Info("update.would_write", "path", path, "output", outPath, "chars", len([]rune(text)))
		return outPath, nil
	}
	if err := os.MkdirAll(s.cfg.Paths.TextDir, 0o755); err != nil {
		return "", fmt.Errorf("create text dir: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	s.logger.Info("update.file_done", "path", path, "output", outPath)
	return outPath, nil
}

// Watch processes documents as they appear under the input directory until
// ctx is cancelled.
func (s *UpdateStage) Watch(ctx context.Context) error {
	evCh, errCh, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{s.cfg.Paths.InputDir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	s.logger.Info("update.watch", "input_dir", s.cfg.Paths.InputDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-evCh:
			if !ok {
				return nil
			}
			if !s.registry.Supports(path) {
				continue
			}
			if _, err := s.RunFile(ctx, path); err != nil {
				s.logger.Error("update.file_failed", "path", path, "error", err)
			}
		case werr, ok := <-errCh:
			if ok && werr != nil {
				s.logger.Warn("update.watch_error", "error", werr)
			}
		}
	}
}

// outputName maps a source path to its .txt name. When two inputs share a
// base name within one run, later ones are prefixed with their parent
// directory to keep outputs distinct.
func (s *UpdateStage) outputName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if prev, ok := s.seen[stem]; ok && prev != path {
		parent := filepath.Base(filepath.Dir(path))
		stem = parent + "_" + stem
	} else {
		s.seen[stem] = path
	}
	return stem + ".txt"
}
