package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/stainfetch/metrics"
	"github.com/pithecene-io/stainfetch/types"
)

// Report is the structured JSON report consumed by the downstream
// provenance writer. All fields use json tags matching the documented
// schema; the schema version tracks types.Version.
type Report struct {
	RunID      string `json:"run_id"`
	Tool       string `json:"tool"`
	Version    string `json:"version"`
	StartedAt  string `json:"started_at"`
	DurationMs int64  `json:"duration_ms"`

	Total           int   `json:"total"`
	Succeeded       int   `json:"succeeded"`
	SkippedExisting int   `json:"skipped_existing"`
	Synthesized     int   `json:"synthesized"`
	Failed          int   `json:"failed"`
	Bytes           int64 `json:"bytes"`
	HasHardFailure  bool  `json:"has_hard_failure"`

	Metrics *metrics.Snapshot `json:"metrics,omitempty"`

	Outcomes []types.TaskOutcome `json:"outcomes"`
}

// BuildReport composes a Report from a finalized summary and a metrics
// snapshot.
func BuildReport(runID string, startedAt time.Time, duration time.Duration, summary *Summary, snap metrics.Snapshot) *Report {
	return &Report{
		RunID:           runID,
		Tool:            types.ToolName,
		Version:         types.Version,
		StartedAt:       startedAt.UTC().Format(time.RFC3339),
		DurationMs:      duration.Milliseconds(),
		Total:           summary.Total,
		Succeeded:       summary.Succeeded,
		SkippedExisting: summary.SkippedExisting,
		Synthesized:     summary.Synthesized,
		Failed:          summary.Failed,
		Bytes:           summary.Bytes,
		HasHardFailure:  summary.HasHardFailure,
		Metrics:         &snap,
		Outcomes:        summary.Outcomes,
	}
}

// WriteReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stderr.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeReportTo writes report JSON to any writer (for testing).
func writeReportTo(report *Report, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Journal is the compact msgpack record written alongside the JSON
// report. Downstream provenance tooling reads it to reconstruct the
// exact ordered outcome list without reparsing JSON.
type Journal struct {
	Version  string              `msgpack:"version"`
	RunID    string              `msgpack:"run_id"`
	Outcomes []types.TaskOutcome `msgpack:"outcomes"`
}

// WriteJournal writes the finalized outcome list as a msgpack journal.
func WriteJournal(runID string, summary *Summary, path string) error {
	journal := &Journal{
		Version:  types.Version,
		RunID:    runID,
		Outcomes: summary.Outcomes,
	}

	data, err := msgpack.Marshal(journal)
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write journal to %s: %w", path, err)
	}
	return nil
}

// ReadJournal reads a msgpack journal back. Used by inspection tooling
// and tests.
func ReadJournal(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read journal %s: %w", path, err)
	}

	var journal Journal
	if err := msgpack.Unmarshal(data, &journal); err != nil {
		return nil, fmt.Errorf("invalid journal %s: %w", path, err)
	}
	return &journal, nil
}
