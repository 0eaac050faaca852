package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Point kinds carried in the points FeatureCollection.
const (
	KindBoundary = "boundary"
	KindInclude  = "include"
)

// FeatureSet accumulates the three FeatureCollections produced for one
// source document: zone polygons, raw geocoded points and include-area
// buffer polygons.
type FeatureSet struct {
	sourceFile string
	polygons   *geojson.FeatureCollection
	points     *geojson.FeatureCollection
	items      *geojson.FeatureCollection
}

func NewFeatureSet(sourceFile string) *FeatureSet {
	return &FeatureSet{
		sourceFile: sourceFile,
		polygons:   geojson.NewFeatureCollection(),
		points:     geojson.NewFeatureCollection(),
		items:      geojson.NewFeatureCollection(),
	}
}

// AddPolygon appends one catchment-zone polygon. The ring must already be
// closed.
func (fs *FeatureSet) AddPolygon(schoolName, method string, ring orb.Ring) {
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties = geojson.Properties{
		"school_name": schoolName,
		"source_file": fs.sourceFile,
		"method":      method,
	}
	fs.polygons.Append(f)
}

// AddPoint appends one raw geocoded point with its origin metadata.
// relation is only meaningful for boundary points and may be nil.
func (fs *FeatureSet) AddPoint(schoolName, name, kind, typ string, relation *string, pt orb.Point) {
	f := geojson.NewFeature(pt)
	props := geojson.Properties{
		"school_name": schoolName,
		"name":        name,
		"kind":        kind,
		"type":        typ,
	}
	if relation != nil {
		props["relation"] = *relation
	}
	f.Properties = props
	fs.points.Append(f)
}

// AddItemBuffer appends one include-area buffer polygon.
func (fs *FeatureSet) AddItemBuffer(schoolName, name string, ring orb.Ring, radiusM float64) {
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties = geojson.Properties{
		"school_name": schoolName,
		"name":        name,
		"radius_m":    radiusM,
	}
	fs.items.Append(f)
}

// PolygonCount returns the number of zone polygons collected so far.
func (fs *FeatureSet) PolygonCount() int { return len(fs.polygons.Features) }

// PointCount returns the number of raw points collected so far.
func (fs *FeatureSet) PointCount() int { return len(fs.points.Features) }

// ItemCount returns the number of include-area buffers collected so far.
func (fs *FeatureSet) ItemCount() int { return len(fs.items.Features) }

// Write persists the three collections under dir. The polygon file goes to
// dir/<stem>.geojson; points and items go to their own subdirectories. An
// existing polygon file is copied into backupDir before being replaced.
// Returns the polygon filename (relative to dir) for index regeneration.
func (fs *FeatureSet) Write(dir, backupDir, stem string) (string, error) {
	polyName := stem + ".geojson"

	polyData, err := json.MarshalIndent(fs.polygons, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal polygons for %s: %w", stem, err)
	}
	if err := BackupThenWrite(filepath.Join(dir, polyName), backupDir, polyData); err != nil {
		return "", err
	}

	pointsData, err := json.MarshalIndent(fs.points, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal points for %s: %w", stem, err)
	}
	if err := WriteFileAtomic(filepath.Join(dir, "points", stem+".points.geojson"), pointsData); err != nil {
		return "", err
	}

	itemsData, err := json.MarshalIndent(fs.items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal items for %s: %w", stem, err)
	}
	if err := WriteFileAtomic(filepath.Join(dir, "items", stem+".items.geojson"), itemsData); err != nil {
		return "", err
	}

	return polyName, nil
}

// indexFile is the flat listing of polygon outputs, regenerated in full
// after every batch run.
type indexFile struct {
	Count int      `json:"count"`
	Files []string `json:"files"`
}

// RegenerateIndex scans dir for top-level .geojson files and rewrites
// index.json to list them all.
func RegenerateIndex(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read polygon dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".geojson") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	data, err := json.MarshalIndent(indexFile{Count: len(files), Files: files}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return WriteFileAtomic(filepath.Join(dir, "index.json"), data)
}
