package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zonemap/schoolzone-mapper/internal/common"
	"github.com/zonemap/schoolzone-mapper/internal/extract"
	"github.com/zonemap/schoolzone-mapper/internal/geocode"
)

// mapGeocoder resolves from a fixed table; unknown names are unresolvable.
type mapGeocoder struct {
	table map[string]geocode.Point
	calls int
}

func (m *mapGeocoder) Geocode(ctx context.Context, name, city string) (*geocode.Point, error) {
	m.calls++
	if pt, ok := m.table[name]; ok {
		return &pt, nil
	}
	return nil, nil
}

func strp(s string) *string { return &s }

func writeDocJSON(t *testing.T, cfg *common.Config, stem string, schools []extract.SchoolRecord) string {
	t.Helper()
	doc := map[string]any{
		"source_file":  stem + ".txt",
		"schools":      schools,
		"school_count": len(schools),
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(cfg.Paths.JSONDir, stem+".json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func suzhouGeocoder() *mapGeocoder {
	return &mapGeocoder{table: map[string]geocode.Point{
		"中山路":  {Lng: 120.58, Lat: 31.30},
		"解放路":  {Lng: 120.62, Lat: 31.32},
		"幸福社区": {Lng: 120.60, Lat: 31.31},
		"和谐小区": {Lng: 120.61, Lat: 31.33},
		"平安村":  {Lng: 120.59, Lat: 31.34},
	}}
}

func sampleSchools() []extract.SchoolRecord {
	return []extract.SchoolRecord{{
		SchoolName: "实验小学",
		Boundaries: []extract.BoundaryRef{
			{Name: "中山路", Type: "road", Relation: strp("east_of")},
			{Name: "解放路", Type: "road", Relation: strp("north_of")},
		},
		Includes: []extract.IncludeRef{
			{Name: "幸福社区", Type: "community"},
			{Name: "和谐小区", Type: "estate"},
			{Name: "平安村", Type: "village"},
		},
	}}
}

func TestPolygonRunFile(t *testing.T) {
	cfg := testConfig(t)
	writeDocJSON(t, cfg, "苏州招生", sampleSchools())

	g := suzhouGeocoder()
	stage := NewPolygonStage(cfg, g, geocode.NewCache(cfg.Paths.CacheFile), 0, false, nil)

	count, err := stage.RunFile(context.Background(), filepath.Join(cfg.Paths.JSONDir, "苏州招生.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 5, g.calls, "every boundary and include name is geocoded once")

	// polygon built over the three include points
	data, err := os.ReadFile(filepath.Join(cfg.Paths.PolygonDir, "苏州招生.geojson"))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "实验小学", fc.Features[0].Properties.MustString("school_name"))
	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	ring := poly[0]
	assert.GreaterOrEqual(t, len(ring), 4)
	assert.Equal(t, ring[0], ring[len(ring)-1])

	// raw points carry kind and relation
	ptsData, err := os.ReadFile(filepath.Join(cfg.Paths.PolygonDir, "points", "苏州招生.points.geojson"))
	require.NoError(t, err)
	pfc, err := geojson.UnmarshalFeatureCollection(ptsData)
	require.NoError(t, err)
	require.Len(t, pfc.Features, 5)
	assert.Equal(t, "boundary", pfc.Features[0].Properties.MustString("kind"))
	assert.Equal(t, "east_of", pfc.Features[0].Properties.MustString("relation"))

	// include buffers
	itemsData, err := os.ReadFile(filepath.Join(cfg.Paths.PolygonDir, "items", "苏州招生.items.geojson"))
	require.NoError(t, err)
	ifc, err := geojson.UnmarshalFeatureCollection(itemsData)
	require.NoError(t, err)
	assert.Len(t, ifc.Features, 3)
}

func TestPolygonFallsBackToBoundaryPoints(t *testing.T) {
	cfg := testConfig(t)
	schools := sampleSchools()
	schools[0].Includes = nil // nothing to hull over but the boundaries
	writeDocJSON(t, cfg, "doc", schools)

	stage := NewPolygonStage(cfg, suzhouGeocoder(), geocode.NewCache(cfg.Paths.CacheFile), 0, false, nil)
	count, err := stage.RunFile(context.Background(), filepath.Join(cfg.Paths.JSONDir, "doc.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "two boundary points still produce a bbox zone")
}

func TestPolygonUnresolvableSchoolSkipped(t *testing.T) {
	cfg := testConfig(t)
	writeDocJSON(t, cfg, "doc", []extract.SchoolRecord{{
		SchoolName: "无名学校",
		Boundaries: []extract.BoundaryRef{{Name: "不存在的路", Type: "road"}},
		Includes:   []extract.IncludeRef{{Name: "不存在的社区", Type: "community"}},
	}})

	stage := NewPolygonStage(cfg, suzhouGeocoder(), geocode.NewCache(cfg.Paths.CacheFile), 0, false, nil)
	count, err := stage.RunFile(context.Background(), filepath.Join(cfg.Paths.JSONDir, "doc.json"))
	require.NoError(t, err, "unresolvable names are not errors")
	assert.Equal(t, 0, count)
}

func TestPolygonRunRegeneratesIndexAndCache(t *testing.T) {
	cfg := testConfig(t)
	writeDocJSON(t, cfg, "one", sampleSchools())
	writeDocJSON(t, cfg, "two", sampleSchools())
	// summary and hidden files in the json dir must be ignored
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.JSONDir, "_summary.json"), []byte("{}"), 0o644))

	cache := geocode.NewCache(cfg.Paths.CacheFile)
	stage := NewPolygonStage(cfg, suzhouGeocoder(), cache, 0, false, nil)

	summary, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)

	data, err := os.ReadFile(filepath.Join(cfg.Paths.PolygonDir, "index.json"))
	require.NoError(t, err)
	var idx struct {
		Count int      `json:"count"`
		Files []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &idx))
	assert.Equal(t, 2, idx.Count)
	assert.Equal(t, []string{"one.geojson", "two.geojson"}, idx.Files)
}

func TestPolygonLimit(t *testing.T) {
	cfg := testConfig(t)
	for i := 0; i < 3; i++ {
		writeDocJSON(t, cfg, fmt.Sprintf("doc%d", i), sampleSchools())
	}
	stage := NewPolygonStage(cfg, suzhouGeocoder(), geocode.NewCache(cfg.Paths.CacheFile), 2, false, nil)

	summary, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
}

func TestPolygonDryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	writeDocJSON(t, cfg, "doc", sampleSchools())

	stage := NewPolygonStage(cfg, suzhouGeocoder(), geocode.NewCache(cfg.Paths.CacheFile), 0, true, nil)
	summary, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	_, err = os.Stat(cfg.Paths.PolygonDir)
	assert.True(t, os.IsNotExist(err), "dry run must not create outputs")
}
