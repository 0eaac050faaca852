package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareRing() orb.Ring {
	return orb.Ring{{120.5, 31.3}, {120.6, 31.3}, {120.6, 31.4}, {120.5, 31.4}, {120.5, 31.3}}
}

func TestFeatureSetWrite(t *testing.T) {
	dir := t.TempDir()
	backup := filepath.Join(dir, ".backup")

	rel := "east_of"
	fs := NewFeatureSet("苏州招生.txt")
	fs.AddPolygon("实验小学", "convex", squareRing())
	fs.AddPoint("实验小学", "中山路", KindBoundary, "road", &rel, orb.Point{120.55, 31.35})
	fs.AddPoint("实验小学", "幸福社区", KindInclude, "community", nil, orb.Point{120.56, 31.36})
	fs.AddItemBuffer("实验小学", "幸福社区", squareRing(), 300)

	name, err := fs.Write(dir, backup, "苏州招生")
	require.NoError(t, err)
	assert.Equal(t, "苏州招生.geojson", name)

	// polygon collection
	polyData, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(polyData)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "实验小学", fc.Features[0].Properties.MustString("school_name"))
	assert.Equal(t, "苏州招生.txt", fc.Features[0].Properties.MustString("source_file"))
	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	ring := poly[0]
	assert.Equal(t, ring[0], ring[len(ring)-1], "ring must be closed")

	// points collection
	ptsData, err := os.ReadFile(filepath.Join(dir, "points", "苏州招生.points.geojson"))
	require.NoError(t, err)
	pfc, err := geojson.UnmarshalFeatureCollection(ptsData)
	require.NoError(t, err)
	require.Len(t, pfc.Features, 2)
	assert.Equal(t, KindBoundary, pfc.Features[0].Properties.MustString("kind"))
	assert.Equal(t, "east_of", pfc.Features[0].Properties.MustString("relation"))
	assert.Equal(t, KindInclude, pfc.Features[1].Properties.MustString("kind"))

	// items collection
	itemsData, err := os.ReadFile(filepath.Join(dir, "items", "苏州招生.items.geojson"))
	require.NoError(t, err)
	ifc, err := geojson.UnmarshalFeatureCollection(itemsData)
	require.NoError(t, err)
	require.Len(t, ifc.Features, 1)
}

func TestFeatureSetWriteBacksUpPrevious(t *testing.T) {
	dir := t.TempDir()
	backup := filepath.Join(dir, ".backup")

	fs := NewFeatureSet("a.txt")
	fs.AddPolygon("某校", "bbox", squareRing())
	_, err := fs.Write(dir, backup, "a")
	require.NoError(t, err)

	// second write replaces the file and must keep a backup copy
	fs2 := NewFeatureSet("a.txt")
	fs2.AddPolygon("某校", "convex", squareRing())
	_, err = fs2.Write(dir, backup, "a")
	require.NoError(t, err)

	entries, err := os.ReadDir(backup)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "a.geojson")
	assert.Contains(t, entries[0].Name(), ".bak")
}

func TestRegenerateIndex(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.geojson", "a.geojson"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	// non-polygon entries must be ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "points"), 0o755))

	require.NoError(t, RegenerateIndex(dir))

	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	var idx struct {
		Count int      `json:"count"`
		Files []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &idx))
	assert.Equal(t, 2, idx.Count)
	assert.Equal(t, []string{"a.geojson", "b.geojson"}, idx.Files)
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte("v1")))
	require.NoError(t, WriteFileAtomic(path, []byte("v2")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not linger")
}
