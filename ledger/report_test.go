package ledger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/stainfetch/metrics"
	"github.com/pithecene-io/stainfetch/types"
)

func testSummary(t *testing.T) *Summary {
	t.Helper()
	led := New(false)
	for _, o := range []types.TaskOutcome{
		outcome("1", "A1", "1", types.ChannelRed, types.StatusSuccess),
		outcome("1", "A1", "1", types.ChannelBlue, types.StatusFailed),
	} {
		if err := led.Record(o); err != nil {
			t.Fatal(err)
		}
	}
	return led.Finalize()
}

func TestBuildReport_CarriesSummary(t *testing.T) {
	summary := testSummary(t)
	snap := metrics.Snapshot{FetchAttempts: 7, Backend: "http"}

	report := BuildReport("run-1", time.Unix(1700000000, 0), 1500*time.Millisecond, summary, snap)

	if report.RunID != "run-1" || report.Tool != types.ToolName || report.Version != types.Version {
		t.Errorf("identity fields = %q/%q/%q", report.RunID, report.Tool, report.Version)
	}
	if report.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", report.DurationMs)
	}
	if !report.HasHardFailure || report.Failed != 1 || report.Succeeded != 1 {
		t.Errorf("counts = %+v", report)
	}
	if report.Metrics.FetchAttempts != 7 {
		t.Errorf("Metrics.FetchAttempts = %d, want 7", report.Metrics.FetchAttempts)
	}
}

func TestWriteReport_JSONRoundTrip(t *testing.T) {
	report := BuildReport("run-2", time.Now(), time.Second, testSummary(t), metrics.Snapshot{})

	var buf bytes.Buffer
	if err := writeReportTo(report, &buf); err != nil {
		t.Fatalf("writeReportTo: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report output is not JSON: %v", err)
	}
	if decoded.RunID != "run-2" || decoded.Total != 2 || len(decoded.Outcomes) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteReport_EmptyPathRejected(t *testing.T) {
	if err := WriteReport(&Report{}, ""); err == nil {
		t.Error("empty report path should be rejected")
	}
}

func TestJournal_RoundTrip(t *testing.T) {
	summary := testSummary(t)
	path := filepath.Join(t.TempDir(), "ledger.msgpack")

	if err := WriteJournal("run-3", summary, path); err != nil {
		t.Fatalf("WriteJournal: %v", err)
	}

	journal, err := ReadJournal(path)
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if journal.RunID != "run-3" || journal.Version != types.Version {
		t.Errorf("journal identity = %q/%q", journal.RunID, journal.Version)
	}
	if len(journal.Outcomes) != len(summary.Outcomes) {
		t.Fatalf("journal holds %d outcomes, want %d", len(journal.Outcomes), len(summary.Outcomes))
	}
	for i := range summary.Outcomes {
		if journal.Outcomes[i] != summary.Outcomes[i] {
			t.Errorf("outcome %d = %+v, want %+v", i, journal.Outcomes[i], summary.Outcomes[i])
		}
	}
}

func TestReadJournal_MissingFile(t *testing.T) {
	if _, err := ReadJournal(filepath.Join(t.TempDir(), "absent.msgpack")); err == nil {
		t.Error("ReadJournal should fail for a missing file")
	}
}
