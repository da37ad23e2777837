package tasks

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pithecene-io/stainfetch/types"
)

func remoteSample(plate, position, sample, antibody string) types.SampleRecord {
	return types.SampleRecord{
		PlateID:  plate,
		Position: position,
		Sample:   sample,
		Antibody: antibody,
		Locator:  types.SourceLocator{BaseURL: "https://images.example.org"},
	}
}

func TestBuild_FourTasksPerSample(t *testing.T) {
	samples := []types.SampleRecord{
		remoteSample("1", "A1", "1", "HPA000992"),
		remoteSample("1", "A1", "2", "HPA000992"),
		remoteSample("929", "E7", "33", "CAB004343"),
	}

	got, err := Build(samples, "/out", ".jpg")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(got) != 4*len(samples) {
		t.Fatalf("Build produced %d tasks, want %d", len(got), 4*len(samples))
	}

	dests := make(map[string]struct{})
	for _, task := range got {
		if _, dup := dests[task.DestPath]; dup {
			t.Errorf("duplicate destination path %s", task.DestPath)
		}
		dests[task.DestPath] = struct{}{}
	}
}

func TestBuild_DestinationLayout(t *testing.T) {
	got, err := Build([]types.SampleRecord{remoteSample("1", "A1", "2", "HPA000992")}, "/out", ".png")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := filepath.Join("/out", "red", "1_A1_2_red.png")
	if got[0].DestPath != want {
		t.Errorf("DestPath = %s, want %s", got[0].DestPath, want)
	}
	if got[0].Channel != types.ChannelRed {
		t.Errorf("first channel = %s, want red (canonical order)", got[0].Channel)
	}
}

func TestBuild_RemoteURLStripsAntibodyPrefix(t *testing.T) {
	got, err := Build([]types.SampleRecord{remoteSample("1", "A1", "1", "HPA000992")}, "/out", ".jpg")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := "https://images.example.org/992/1_A1_1_red.jpg"
	if got[0].SourceURL != want {
		t.Errorf("SourceURL = %s, want %s", got[0].SourceURL, want)
	}
}

func TestAntibodySegment(t *testing.T) {
	cases := map[string]string{
		"HPA000992": "992",
		"CAB004343": "4343",
		"HPA040086": "40086",
		"12345":     "12345",
	}
	for in, want := range cases {
		if got := AntibodySegment(in); got != want {
			t.Errorf("AntibodySegment(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestBuild_LocalArchiveLayout(t *testing.T) {
	sample := types.SampleRecord{
		PlateID:  "B2AI_1",
		Position: "C1",
		Sample:   "R1",
		ZSlice:   "z01",
		Locator:  types.SourceLocator{LocalDir: "/data/crate"},
	}

	got, err := Build([]types.SampleRecord{sample}, "/out", ".jpg")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wantSrc := filepath.Join("/data/crate", "red", "B2AI_1_C1_R1_z01_red.jpg")
	if got[0].SourcePath != wantSrc {
		t.Errorf("SourcePath = %s, want %s", got[0].SourcePath, wantSrc)
	}
	if got[0].SourceURL != "" {
		t.Errorf("local task should have no SourceURL, got %s", got[0].SourceURL)
	}
	if !strings.Contains(got[0].DestPath, "z01") {
		t.Errorf("z tag missing from destination %s", got[0].DestPath)
	}
}

func TestBuild_MalformedSampleFailsFast(t *testing.T) {
	bad := remoteSample("1", "", "1", "HPA000992")

	_, err := Build([]types.SampleRecord{remoteSample("1", "A1", "1", "HPA000992"), bad}, "/out", ".jpg")
	if err == nil {
		t.Fatal("Build should reject a sample missing its position")
	}
	if !strings.Contains(err.Error(), "sample 1") {
		t.Errorf("error should name the offending sample index: %v", err)
	}
}

func TestBuild_DuplicateTileRejected(t *testing.T) {
	dup := remoteSample("1", "A1", "1", "HPA000992")

	_, err := Build([]types.SampleRecord{dup, dup}, "/out", ".jpg")
	if err == nil {
		t.Fatal("Build should reject duplicate (tile, channel) pairs")
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	got, err := Build(nil, "/out", ".jpg")
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Build(nil) produced %d tasks", len(got))
	}
}
