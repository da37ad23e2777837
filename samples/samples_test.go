package samples

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pithecene-io/stainfetch/types"
)

var remoteLocator = types.SourceLocator{BaseURL: "https://images.example.org"}

const samplesCSV = `filename,if_plate_id,position,sample,status,locations,antibody,ensembl_ids,gene_names
/archive/1/1_A1_1_,1,A1,1,35,Golgi apparatus,HPA000992,ENSG00000066455,GOLGA5
/archive/1/1_A1_2_,1,A1,2,35,Golgi apparatus,HPA000992,ENSG00000066455,GOLGA5
`

func TestReadSamples(t *testing.T) {
	records, err := ReadSamples(strings.NewReader(samplesCSV), remoteLocator)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.PlateID != "1" || first.Position != "A1" || first.Sample != "1" {
		t.Errorf("identity = %s/%s/%s", first.PlateID, first.Position, first.Sample)
	}
	if first.Antibody != "HPA000992" {
		t.Errorf("Antibody = %q", first.Antibody)
	}
	if first.GeneNames != "GOLGA5" {
		t.Errorf("GeneNames = %q", first.GeneNames)
	}
	if first.Locator.BaseURL != remoteLocator.BaseURL {
		t.Errorf("Locator = %+v", first.Locator)
	}
}

func TestReadSamples_ReorderedColumns(t *testing.T) {
	csv := `antibody,sample,position,if_plate_id,filename,status,locations,ensembl_ids,gene_names
HPA000992,1,A1,1,/archive/1/1_A1_1_,35,Golgi apparatus,ENSG00000066455,GOLGA5
`
	records, err := ReadSamples(strings.NewReader(csv), remoteLocator)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if records[0].PlateID != "1" || records[0].Antibody != "HPA000992" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestReadSamples_MissingColumn(t *testing.T) {
	csv := "filename,if_plate_id,position\n/a,1,A1\n"
	if _, err := ReadSamples(strings.NewReader(csv), remoteLocator); err == nil {
		t.Error("missing columns should be rejected")
	}
}

func TestReadSamples_MissingIdentityField(t *testing.T) {
	csv := `filename,if_plate_id,position,sample,status,locations,antibody,ensembl_ids,gene_names
/archive/1/1_A1_1_,,A1,1,35,loc,HPA000992,ENSG1,G1
`
	if _, err := ReadSamples(strings.NewReader(csv), remoteLocator); err == nil {
		t.Error("blank plate id should be rejected")
	}
}

func TestReadCatalog(t *testing.T) {
	csv := `antibody,ensembl_ids,gene_names,atlas_name,locations,n_location
HPA000992,ENSG00000066455,GOLGA5,golgi,Golgi apparatus,1
`
	entries, err := ReadCatalog(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(entries) != 1 || entries[0].Antibody != "HPA000992" || entries[0].AtlasName != "golgi" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestReadProteinList(t *testing.T) {
	input := "GOLGA5\n\n# comment\n  TP53  \n"
	names, err := ReadProteinList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadProteinList: %v", err)
	}
	want := []string{"GOLGA5", "TP53"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestFilterByProteins(t *testing.T) {
	records, err := ReadSamples(strings.NewReader(samplesCSV), remoteLocator)
	if err != nil {
		t.Fatal(err)
	}

	kept := FilterByProteins(records, []string{"golga5"})
	if len(kept) != 2 {
		t.Errorf("case-insensitive match kept %d records, want 2", len(kept))
	}

	kept = FilterByProteins(records, []string{"TP53"})
	if len(kept) != 0 {
		t.Errorf("non-matching protein kept %d records, want 0", len(kept))
	}
}

func TestFilterCatalogByProteins(t *testing.T) {
	entries := []CatalogEntry{
		{Antibody: "HPA000992", GeneNames: "GOLGA5"},
		{Antibody: "HPA004109", GeneNames: "TP53, TRP53"},
	}

	kept := FilterCatalogByProteins(entries, []string{"trp53"})
	if len(kept) != 1 || kept[0].Antibody != "HPA004109" {
		t.Errorf("kept = %+v, want only the TP53 entry", kept)
	}

	if kept := FilterCatalogByProteins(entries, []string{"BRCA1"}); len(kept) != 0 {
		t.Errorf("non-matching protein kept %d entries", len(kept))
	}
}

func TestRecordsFromAtlasURLs(t *testing.T) {
	entries := []CatalogEntry{
		{Antibody: "HPA000992", EnsemblIDs: "ENSG00000066455", GeneNames: "GOLGA5", Locations: "Golgi apparatus"},
	}
	urls := []string{
		"http://images.proteinatlas.org/992/1736_F10_19_blue_red_green.jpg",
		// Antibody absent from the catalog.
		"http://images.proteinatlas.org/4109/10_C4_2_blue_red_green.jpg",
		// File name does not encode a tile.
		"http://images.proteinatlas.org/992/thumbnail.jpg",
		// Same tile again.
		"http://images.proteinatlas.org/992/1736_F10_19_blue_red_green_yellow.jpg",
	}

	records, err := RecordsFromAtlasURLs(urls, entries, remoteLocator)
	if err != nil {
		t.Fatalf("RecordsFromAtlasURLs: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.PlateID != "1736" || rec.Position != "F10" || rec.Sample != "19" {
		t.Errorf("identity = %s/%s/%s", rec.PlateID, rec.Position, rec.Sample)
	}
	if rec.Antibody != "HPA000992" || rec.GeneNames != "GOLGA5" {
		t.Errorf("catalog fields = %s/%s", rec.Antibody, rec.GeneNames)
	}
	if rec.Locator != remoteLocator {
		t.Errorf("Locator = %+v", rec.Locator)
	}
}

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCM4AIManifest_V1(t *testing.T) {
	tsv := "Antibody ID\tENSEMBL ID\tTreatment\tWell\tRegion\n" +
		"CAB079904\tENSG00000187555\tPaclitaxel\tC1\tR1\n" +
		"CAB079904\tENSG00000187555\tPaclitaxel\tC1\tR2\n"
	path := writeManifest(t, "manifest.tsv", tsv)

	records, err := ReadCM4AIManifest(path)
	if err != nil {
		t.Fatalf("ReadCM4AIManifest: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.PlateID != "Paclitaxel" || first.Position != "C1" || first.Sample != "1" {
		t.Errorf("identity = %s/%s/%s", first.PlateID, first.Position, first.Sample)
	}
	if first.Antibody != "CAB079904" {
		t.Errorf("Antibody = %q", first.Antibody)
	}
	if first.Locator.LocalDir != filepath.Dir(path) {
		t.Errorf("LocalDir = %q, want manifest dir", first.Locator.LocalDir)
	}
}

func TestReadCM4AIManifest_V2(t *testing.T) {
	manifest := "B2AI_1_Paclitaxel_C1_R1_z01\nB2AI_1_Paclitaxel_C1_R2_z01\n"
	path := writeManifest(t, "manifest.txt", manifest)

	records, err := ReadCM4AIManifest(path)
	if err != nil {
		t.Fatalf("ReadCM4AIManifest: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.PlateID != "B2AI_1_Paclitaxel" || first.Position != "C1" || first.Sample != "1" {
		t.Errorf("identity = %s/%s/%s", first.PlateID, first.Position, first.Sample)
	}
	if first.ZSlice != "z01" {
		t.Errorf("ZSlice = %q, want z01", first.ZSlice)
	}
	if got := first.Key().Stem(); got != "B2AI_1_Paclitaxel_C1_1_z01_" {
		t.Errorf("Stem = %q", got)
	}
}

// Manifests of both generations describing the same tiles agree on
// tile identity.
func TestCM4AIGenerationsAgreeOnIdentity(t *testing.T) {
	v1 := "Antibody ID\tENSEMBL ID\tTreatment\tWell\tRegion\n" +
		"CAB079904\tENSG00000187555\tPaclitaxel\tC1\tR1\n"
	v2 := "Paclitaxel_C1_R1\n"

	r1, err := ReadCM4AIManifest(writeManifest(t, "m.tsv", v1))
	if err != nil {
		t.Fatal(err)
	}
	r2, err := ReadCM4AIManifest(writeManifest(t, "m.txt", v2))
	if err != nil {
		t.Fatal(err)
	}

	k1, k2 := r1[0].Key(), r2[0].Key()
	k1.ZSlice, k2.ZSlice = "", ""
	if k1 != k2 {
		t.Errorf("v1 key %v != v2 key %v", k1, k2)
	}
}

func TestParseBaseName(t *testing.T) {
	cases := []struct {
		name    string
		plate   string
		pos     string
		sample  string
		zslice  string
		wantErr bool
	}{
		{name: "B2AI_1_Paclitaxel_C1_R1_z01", plate: "B2AI_1_Paclitaxel", pos: "C1", sample: "1", zslice: "z01"},
		{name: "B2AI_1_untreated_A10_R12", plate: "B2AI_1_untreated", pos: "A10", sample: "12"},
		{name: "B2AI_1_Paclitaxel_C1_R1_z01_red", plate: "B2AI_1_Paclitaxel", pos: "C1", sample: "1", zslice: "z01"},
		{name: "not-a-base-name", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, c := range cases {
		rec, err := ParseBaseName(c.name)
		if c.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", c.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", c.name, err)
			continue
		}
		if rec.PlateID != c.plate || rec.Position != c.pos || rec.Sample != c.sample || rec.ZSlice != c.zslice {
			t.Errorf("%q: got %s/%s/%s/%s", c.name, rec.PlateID, rec.Position, rec.Sample, rec.ZSlice)
		}
	}
}
