// Package samples normalizes the supported input catalogs into
// SampleRecord lists. Four shapes are accepted: the standard samples
// CSV, the antibody catalog CSV, and two generations of CM4AI
// manifest. Format detection happens here, at the edge; downstream
// packages only ever see SampleRecords.
package samples

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pithecene-io/stainfetch/tasks"
	"github.com/pithecene-io/stainfetch/types"
)

// sampleColumns is the required header of the samples CSV dialect.
var sampleColumns = []string{
	"filename", "if_plate_id", "position", "sample", "status",
	"locations", "antibody", "ensembl_ids", "gene_names",
}

// catalogColumns is the required header of the antibody catalog CSV.
var catalogColumns = []string{
	"antibody", "ensembl_ids", "gene_names", "atlas_name",
	"locations", "n_location",
}

// CatalogEntry is one row of the antibody catalog: a unique antibody
// with the genes it stains and where the atlas files its images.
type CatalogEntry struct {
	Antibody   string
	EnsemblIDs string
	GeneNames  string
	AtlasName  string
	Locations  string
	NLocation  string
}

// ReadSamples parses the samples CSV dialect and attaches locator to
// each record. The header row is required and may order columns
// freely; unknown columns are ignored.
func ReadSamples(r io.Reader, locator types.SourceLocator) ([]types.SampleRecord, error) {
	rows, index, err := readTable(r, ',', sampleColumns)
	if err != nil {
		return nil, fmt.Errorf("samples csv: %w", err)
	}

	records := make([]types.SampleRecord, 0, len(rows))
	for i, row := range rows {
		rec := types.SampleRecord{
			Filename:   row[index["filename"]],
			PlateID:    row[index["if_plate_id"]],
			Position:   row[index["position"]],
			Sample:     row[index["sample"]],
			Status:     row[index["status"]],
			Locations:  row[index["locations"]],
			Antibody:   row[index["antibody"]],
			EnsemblIDs: row[index["ensembl_ids"]],
			GeneNames:  row[index["gene_names"]],
			Locator:    locator,
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("samples csv row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadSamplesFile opens path and delegates to ReadSamples.
func ReadSamplesFile(path string, locator types.SourceLocator) ([]types.SampleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open samples file: %w", err)
	}
	defer f.Close()
	return ReadSamples(f, locator)
}

// ReadCatalog parses the antibody catalog CSV.
func ReadCatalog(r io.Reader) ([]CatalogEntry, error) {
	rows, index, err := readTable(r, ',', catalogColumns)
	if err != nil {
		return nil, fmt.Errorf("antibody catalog csv: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, CatalogEntry{
			Antibody:   row[index["antibody"]],
			EnsemblIDs: row[index["ensembl_ids"]],
			GeneNames:  row[index["gene_names"]],
			AtlasName:  row[index["atlas_name"]],
			Locations:  row[index["locations"]],
			NLocation:  row[index["n_location"]],
		})
	}
	return entries, nil
}

// ReadCatalogFile opens path and delegates to ReadCatalog.
func ReadCatalogFile(path string) ([]CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return ReadCatalog(f)
}

// ReadProteinList reads one protein name per line, skipping blanks
// and lines starting with '#'.
func ReadProteinList(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("protein list: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// FilterByProteins keeps only records whose gene names intersect the
// protein list. Gene name columns are comma-delimited; matching is
// case-insensitive on whole names.
func FilterByProteins(records []types.SampleRecord, proteins []string) []types.SampleRecord {
	wanted := make(map[string]struct{}, len(proteins))
	for _, p := range proteins {
		wanted[strings.ToUpper(strings.TrimSpace(p))] = struct{}{}
	}

	var kept []types.SampleRecord
	for _, rec := range records {
		for _, gene := range strings.Split(rec.GeneNames, ",") {
			if _, ok := wanted[strings.ToUpper(strings.TrimSpace(gene))]; ok {
				kept = append(kept, rec)
				break
			}
		}
	}
	return kept
}

// FilterCatalogByProteins keeps catalog entries whose gene names
// intersect the protein list. Same matching rules as FilterByProteins.
func FilterCatalogByProteins(entries []CatalogEntry, proteins []string) []CatalogEntry {
	wanted := make(map[string]struct{}, len(proteins))
	for _, p := range proteins {
		wanted[strings.ToUpper(strings.TrimSpace(p))] = struct{}{}
	}

	var kept []CatalogEntry
	for _, entry := range entries {
		for _, gene := range strings.Split(entry.GeneNames, ",") {
			if _, ok := wanted[strings.ToUpper(strings.TrimSpace(gene))]; ok {
				kept = append(kept, entry)
				break
			}
		}
	}
	return kept
}

// RecordsFromAtlasURLs synthesizes sample records by matching atlas
// image URLs against catalog entries. Each URL names one tile under an
// antibody directory ("<base>/<antibody>/<plate>_<position>_<sample>_...");
// URLs for antibodies absent from entries, and URLs whose file name
// does not encode a tile, are skipped. locator is attached to every
// record, so task construction follows the standard path rather than
// reusing the atlas URL verbatim.
func RecordsFromAtlasURLs(urls []string, entries []CatalogEntry, locator types.SourceLocator) ([]types.SampleRecord, error) {
	bySegment := make(map[string]*CatalogEntry, len(entries))
	for i := range entries {
		bySegment[tasks.AntibodySegment(entries[i].Antibody)] = &entries[i]
	}

	var records []types.SampleRecord
	seen := make(map[string]struct{})
	for _, url := range urls {
		segments := strings.Split(strings.TrimSuffix(url, "/"), "/")
		if len(segments) < 2 {
			continue
		}
		entry, ok := bySegment[segments[len(segments)-2]]
		if !ok {
			continue
		}
		parts := strings.SplitN(segments[len(segments)-1], "_", 4)
		if len(parts) < 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			continue
		}

		rec := types.SampleRecord{
			Filename:   url,
			PlateID:    parts[0],
			Position:   parts[1],
			Sample:     parts[2],
			Locations:  entry.Locations,
			Antibody:   entry.Antibody,
			EnsemblIDs: entry.EnsemblIDs,
			GeneNames:  entry.GeneNames,
			Locator:    locator,
		}
		stem := rec.Key().Stem()
		if _, dup := seen[stem]; dup {
			continue
		}
		seen[stem] = struct{}{}

		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("atlas url %s: %w", url, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// readTable reads a delimited file with a header row and verifies the
// required columns are present. It returns the data rows and a
// column-name index into them.
func readTable(r io.Reader, delim rune, required []string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, index, nil
}
