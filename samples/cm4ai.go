package samples

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pithecene-io/stainfetch/types"
)

// CM4AI manifests describe pre-staged image sets laid out next to the
// manifest in red/ blue/ green/ yellow/ subdirectories. Two
// generations exist:
//
//   - v1: a fixed-column TSV with an "Antibody ID" header
//     (Antibody ID, ENSEMBL ID, Treatment, Well, Region);
//   - v2: a plain list of image base names with the identity fields
//     and an optional z-slice tag encoded in each name, for example
//     "B2AI_1_Paclitaxel_C1_R1_z01".
//
// Both normalize to the same SampleRecords carrying a local-copy
// locator rooted at the manifest's directory.

// cm4aiColumns is the v1 TSV header.
var cm4aiColumns = []string{
	"Antibody ID", "ENSEMBL ID", "Treatment", "Well", "Region",
}

// baseNamePattern matches a v2 base name: anything_position_region
// with an optional trailing z tag. Position is a well coordinate like
// C1; region is the numbered field of view.
var baseNamePattern = regexp.MustCompile(`^(.+)_([A-H][0-9]{1,2})_R?([0-9]+)(?:_(z[0-9]+))?$`)

// ReadCM4AIManifest loads a CM4AI manifest of either generation,
// choosing the parser by the file's shape: a tab-delimited header
// naming "Antibody ID" selects v1, anything else is treated as a v2
// base-name list. The records' locator points at the manifest's
// directory.
func ReadCM4AIManifest(path string) ([]types.SampleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	locator := types.SourceLocator{LocalDir: filepath.Dir(path)}

	br := bufio.NewReader(f)
	first, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	rest := io.MultiReader(strings.NewReader(first), br)

	if strings.Contains(first, "\t") && strings.Contains(first, "Antibody ID") {
		return readCM4AIv1(rest, locator)
	}
	return readCM4AIv2(rest, locator)
}

// readCM4AIv1 parses the legacy fixed-column TSV. Treatment, Well and
// Region carry the tile identity: treatment names the plate, the well
// is the position, and the region numbers the sample within the well.
func readCM4AIv1(r io.Reader, locator types.SourceLocator) ([]types.SampleRecord, error) {
	rows, index, err := readTable(r, '\t', cm4aiColumns)
	if err != nil {
		return nil, fmt.Errorf("cm4ai manifest: %w", err)
	}

	records := make([]types.SampleRecord, 0, len(rows))
	for i, row := range rows {
		rec := types.SampleRecord{
			PlateID:    row[index["Treatment"]],
			Position:   row[index["Well"]],
			Sample:     strings.TrimPrefix(row[index["Region"]], "R"),
			Antibody:   row[index["Antibody ID"]],
			EnsemblIDs: row[index["ENSEMBL ID"]],
			Locator:    locator,
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("cm4ai manifest row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// readCM4AIv2 parses the base-name generation: one image base name
// per line, identity fields decoded from the name itself.
func readCM4AIv2(r io.Reader, locator types.SourceLocator) ([]types.SampleRecord, error) {
	scanner := bufio.NewScanner(r)
	var records []types.SampleRecord
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}

		rec, err := ParseBaseName(name)
		if err != nil {
			return nil, fmt.Errorf("cm4ai manifest line %d: %w", lineNo, err)
		}
		rec.Locator = locator
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cm4ai manifest: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("cm4ai manifest: no base names found")
	}
	return records, nil
}

// ParseBaseName decodes a CM4AI image base name into a SampleRecord
// without a locator. A trailing channel suffix, if present, is
// stripped before decoding so both bare stems and full file base
// names are accepted.
func ParseBaseName(name string) (types.SampleRecord, error) {
	stem := name
	for _, ch := range types.Channels() {
		stem = strings.TrimSuffix(stem, "_"+string(ch))
	}
	stem = strings.TrimSuffix(stem, "_")

	m := baseNamePattern.FindStringSubmatch(stem)
	if m == nil {
		return types.SampleRecord{}, fmt.Errorf("unrecognized image base name %q", name)
	}
	return types.SampleRecord{
		PlateID:  m[1],
		Position: m[2],
		Sample:   m[3],
		ZSlice:   m[4],
	}, nil
}
