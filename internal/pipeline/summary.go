package pipeline

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/zonemap/schoolzone-mapper/internal/output"
)

// Item statuses recorded in the run summary.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// ItemResult is the per-document line of a run summary.
type ItemResult struct {
	File      string `json:"file"`
	Status    string `json:"status"`
	Output    string `json:"output,omitempty"`
	Records   int    `json:"records,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunSummary aggregates one batch run. Individual failures land here
// instead of aborting sibling documents. Add is safe for concurrent use so
// a worker pool can report into one summary.
type RunSummary struct {
	mu sync.Mutex

	Stage     string       `json:"stage"`
	StartedAt time.Time    `json:"started_at"`
	ElapsedMS int64        `json:"elapsed_ms"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

func NewRunSummary(stage string) *RunSummary {
	return &RunSummary{Stage: stage, StartedAt: time.Now()}
}

// Add records one item and updates the aggregate counters.
func (s *RunSummary) Add(item ItemResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items = append(s.Items, item)
	s.Total++
	switch item.Status {
	case StatusOK:
		s.Succeeded++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Finish stamps the total elapsed time.
func (s *RunSummary) Finish() {
	s.ElapsedMS = time.Since(s.StartedAt).Milliseconds()
}

// Write persists the summary as _summary.json inside dir.
func (s *RunSummary) Write(dir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return output.WriteFileAtomic(filepath.Join(dir, "_summary.json"), data)
}
