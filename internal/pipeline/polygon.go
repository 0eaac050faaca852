package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/zonemap/schoolzone-mapper/internal/common"
	"github.com/zonemap/schoolzone-mapper/internal/extract"
	"github.com/zonemap/schoolzone-mapper/internal/geocode"
	"github.com/zonemap/schoolzone-mapper/internal/geom"
	"github.com/zonemap/schoolzone-mapper/internal/output"
)

// Geocoder resolves one place name to a point, or nil when the provider
// has no answer.
type Geocoder interface {
	Geocode(ctx context.Context, name, city string) (*geocode.Point, error)
}

// PolygonStage turns per-document school JSON into GeoJSON: one polygon
// collection, one raw-point collection and one include-buffer collection
// per document, plus a regenerated index of all polygon files.
type PolygonStage struct {
	cfg      *common.Config
	geocoder Geocoder
	cache    *geocode.Cache
	synth    geom.Synthesizer
	limit    int
	dryRun   bool
	logger   *slog.Logger
}

func NewPolygonStage(cfg *common.Config, geocoder Geocoder, cache *geocode.Cache, limit int, dryRun bool, logger *slog.Logger) *PolygonStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolygonStage{
		cfg:      cfg,
		geocoder: geocoder,
		cache:    cache,
		synth: geom.Synthesizer{
			Method:       cfg.Polygon.HullMethod,
			ConcaveRatio: cfg.Polygon.ConcaveRatio,
		},
		limit:  limit,
		dryRun: dryRun,
		logger: logger,
	}
}

// document mirrors the transform stage's output layout.
type document struct {
	SourceFile  string                 `json:"source_file"`
	Schools     []extract.SchoolRecord `json:"schools"`
	SchoolCount int                    `json:"school_count"`
}

// Run processes every JSON document, geocoding its names and synthesizing
// zone polygons. The geocode cache is persisted and the polygon index
// regenerated at the end of the run even when individual documents failed.
func (s *PolygonStage) Run(ctx context.Context) (*RunSummary, error) {
	summary := NewRunSummary("polygon")

	paths, err := listJSONDocuments(s.cfg.Paths.JSONDir)
	if err != nil {
		return summary, fmt.Errorf("list documents: %w", err)
	}
	if s.limit > 0 && len(paths) > s.limit {
		paths = paths[:s.limit]
	}
	s.logger.Info("polygon.start", "json_dir", s.cfg.Paths.JSONDir, "files", len(paths), "hull", s.synth.Method, "dry_run", s.dryRun)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			break
		}
		start := time.Now()
		count, err := s.RunFile(ctx, path)
		item := ItemResult{File: path, Records: count, ElapsedMS: time.Since(start).Milliseconds()}
		if err != nil {
			item.Status = StatusFailed
			item.Error = err.Error()
			s.logger.Error("polygon.file_failed", "path", path, "error", err)
		} else {
			item.Status = StatusOK
		}
		summary.Add(item)
	}

	if !s.dryRun {
		if err := output.RegenerateIndex(s.cfg.Paths.PolygonDir); err != nil {
			s.logger.Warn("polygon.index_failed", "error", err)
		}
		if err := s.cache.Save(); err != nil {
			s.logger.Warn("polygon.cache_save_failed", "error", err)
		} else {
			s.logger.Info("polygon.cache_saved", "entries", s.cache.Len())
		}
		summary.Finish()
		if err := summary.Write(s.cfg.Paths.PolygonDir); err != nil {
			s.logger.Warn("polygon.summary_write_failed", "error", err)
		}
	} else {
		summary.Finish()
	}
	s.logger.Info("polygon.done", "total", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed, "elapsed_ms", summary.ElapsedMS)
	return summary, ctx.Err()
}

// RunFile processes one JSON document and returns the number of polygons
// produced.
func (s *PolygonStage) RunFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fs := output.NewFeatureSet(doc.SourceFile)

	for _, school := range doc.Schools {
		if err := ctx.Err(); err != nil {
			return fs.PolygonCount(), err
		}
		if err := s.processSchool(ctx, fs, school); err != nil {
			return fs.PolygonCount(), err
		}
	}

	if s.dryRun {
		s.logger.Info("polygon.would_write", "file", path, "polygons", fs.PolygonCount(), "points", fs.PointCount(), "items", fs.ItemCount())
		return fs.PolygonCount(), nil
	}
	if _, err := fs.Write(s.cfg.Paths.PolygonDir, s.cfg.Paths.BackupDir, stem); err != nil {
		return fs.PolygonCount(), err
	}
	s.logger.Info("polygon.file_done", "file", path, "polygons", fs.PolygonCount(), "points", fs.PointCount())
	return fs.PolygonCount(), nil
}

// processSchool geocodes one school's names and appends its features. The
// zone hull is built over include points; boundary points are the fallback
// when no include resolved. Unresolvable names are skipped quietly, a
// school with no resolvable names at all produces no polygon.
func (s *PolygonStage) processSchool(ctx context.Context, fs *output.FeatureSet, school extract.SchoolRecord) error {
	city := s.cfg.Geocode.City
	var includePts, boundaryPts []orb.Point

	for _, b := range school.Boundaries {
		pt, err := s.geocoder.Geocode(ctx, b.Name, city)
		if err != nil {
			return fmt.Errorf("geocode %q: %w", b.Name, err)
		}
		if pt == nil {
			s.logger.Debug("polygon.unresolved", "school", school.SchoolName, "name", b.Name, "kind", output.KindBoundary)
			continue
		}
		p := orb.Point{pt.Lng, pt.Lat}
		boundaryPts = append(boundaryPts, p)
		fs.AddPoint(school.SchoolName, b.Name, output.KindBoundary, b.Type, b.Relation, p)
	}

	for _, inc := range school.Includes {
		pt, err := s.geocoder.Geocode(ctx, inc.Name, city)
		if err != nil {
			return fmt.Errorf("geocode %q: %w", inc.Name, err)
		}
		if pt == nil {
			s.logger.Debug("polygon.unresolved", "school", school.SchoolName, "name", inc.Name, "kind", output.KindInclude)
			continue
		}
		p := orb.Point{pt.Lng, pt.Lat}
		includePts = append(includePts, p)
		fs.AddPoint(school.SchoolName, inc.Name, output.KindInclude, inc.Type, nil, p)
		if ring := geom.BufferPoint(p, s.cfg.Polygon.ItemBufferM); ring != nil {
			fs.AddItemBuffer(school.SchoolName, inc.Name, ring, s.cfg.Polygon.ItemBufferM)
		}
	}

	hullPts := includePts
	if len(hullPts) == 0 {
		hullPts = boundaryPts
	}
	if len(hullPts) == 0 {
		s.logger.Warn("polygon.no_points", "school", school.SchoolName)
		return nil
	}

	ring, method := s.synth.Synthesize(hullPts)
	if ring == nil {
		return nil
	}
	fs.AddPolygon(school.SchoolName, method, ring)
	return nil
}

func listJSONDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") ||
			strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}
