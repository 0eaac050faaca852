package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zonemap/schoolzone-mapper/internal/extract"
)

// DocumentWriter emits the per-document extraction JSON incrementally:
// the header and each school record are flushed to disk as soon as they
// exist, so a crash mid-stream leaves a readable JSON prefix instead of
// an empty file.
//
// The layout is:
//
//	{
//	  "source_file": "...",
//	  "schools": [ {...}, {...} ],
//	  "school_count": N
//	}
type DocumentWriter struct {
	f      *os.File
	path   string
	count  int
	closed bool
}

// NewDocumentWriter creates the output file and writes the document header
// up to the opening of the schools array.
func NewDocumentWriter(path, sourceFile string) (*DocumentWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	src, _ := json.Marshal(sourceFile)
	if _, err := fmt.Fprintf(f, "{\n  \"source_file\": %s,\n  \"schools\": [", src); err != nil {
		f.Close()
		return nil, err
	}
	return &DocumentWriter{f: f, path: path}, nil
}

// WriteRecord appends one school record to the array and syncs the file.
func (w *DocumentWriter) WriteRecord(rec extract.SchoolRecord) error {
	if w.closed {
		return fmt.Errorf("write to closed document %s", w.path)
	}
	body, err := json.MarshalIndent(rec, "    ", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %q: %w", rec.SchoolName, err)
	}
	sep := ",\n    "
	if w.count == 0 {
		sep = "\n    "
	}
	if _, err := fmt.Fprintf(w.f, "%s%s", sep, body); err != nil {
		return err
	}
	w.count++
	return w.f.Sync()
}

// Count returns the number of records written so far.
func (w *DocumentWriter) Count() int { return w.count }

// Close terminates the array, writes school_count and closes the file.
func (w *DocumentWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := fmt.Fprintf(w.f, "\n  ],\n  \"school_count\": %d\n}\n", w.count); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Abort closes the underlying file without finalizing the document and
// removes it. Used when a document produced no usable records.
func (w *DocumentWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.f.Close()
	return os.Remove(w.path)
}
