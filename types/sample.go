// Package types defines core domain types for the stainfetch runtime.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Channel is one of the four fixed fluorescence stains captured per
// imaging tile. Green is the antibody-stained target channel; red,
// blue and yellow are reference stains shared across antibodies on a
// given tile.
type Channel string

// The four fixed channels, in canonical order.
const (
	ChannelRed    Channel = "red"
	ChannelBlue   Channel = "blue"
	ChannelGreen  Channel = "green"
	ChannelYellow Channel = "yellow"
)

// Channels returns the fixed channel set in canonical order.
// The order is load-bearing: task expansion, ledger ordering and
// fake-image partitioning all iterate channels in this order.
func Channels() []Channel {
	return []Channel{ChannelRed, ChannelBlue, ChannelGreen, ChannelYellow}
}

// IsTarget reports whether c is the antibody-stained target channel.
func (c Channel) IsTarget() bool {
	return c == ChannelGreen
}

// ParseChannel parses a channel name, returning an error for unknown names.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(s)) {
	case ChannelRed, ChannelBlue, ChannelGreen, ChannelYellow:
		return Channel(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// SourceLocator describes where a sample's image bytes come from.
// Exactly one of BaseURL or LocalDir must be set.
type SourceLocator struct {
	// BaseURL is the remote base for constructed image URLs.
	// Accepts http(s):// and s3:// schemes.
	BaseURL string
	// LocalDir is the root of a pre-staged archive laid out with one
	// subdirectory per channel name (red/ blue/ green/ yellow/).
	LocalDir string
}

// IsLocal reports whether the locator points at a pre-staged archive.
func (l SourceLocator) IsLocal() bool {
	return l.LocalDir != ""
}

// Validate checks that exactly one locator field is set.
func (l SourceLocator) Validate() error {
	if l.BaseURL == "" && l.LocalDir == "" {
		return errors.New("source locator is empty")
	}
	if l.BaseURL != "" && l.LocalDir != "" {
		return errors.New("source locator has both base URL and local directory")
	}
	return nil
}

// SampleKey identifies one imaging tile. Plate, position and sample
// index together name the tile; ZSlice is an optional z-stack tag and
// is empty for single-plane acquisitions.
type SampleKey struct {
	PlateID  string `json:"plate_id" msgpack:"plate_id"`
	Position string `json:"position" msgpack:"position"`
	Sample   string `json:"sample" msgpack:"sample"`
	ZSlice   string `json:"z_slice,omitempty" msgpack:"z_slice,omitempty"`
}

// Stem returns the filename stem for the tile, without channel or
// suffix: "<plate>_<position>_<sample>_" or
// "<plate>_<position>_<sample>_<z>_" when a z-slice tag is present.
func (k SampleKey) Stem() string {
	stem := k.PlateID + "_" + k.Position + "_" + k.Sample + "_"
	if k.ZSlice != "" {
		stem += k.ZSlice + "_"
	}
	return stem
}

// String returns a human-readable key for logs and error messages.
func (k SampleKey) String() string {
	if k.ZSlice != "" {
		return fmt.Sprintf("%s/%s/%s/%s", k.PlateID, k.Position, k.Sample, k.ZSlice)
	}
	return fmt.Sprintf("%s/%s/%s", k.PlateID, k.Position, k.Sample)
}

// SampleRecord is the canonical, format-independent description of one
// tile to be imaged. Produced by the input normalizer and immutable
// afterwards.
type SampleRecord struct {
	// Filename is the source filename stem as it appears in the input
	// table (e.g. "/archive/1/1_A1_1_"). Informational; destination
	// names are derived from the key, not from this field.
	Filename string
	// PlateID is the acquisition plate identifier.
	PlateID string
	// Position is the well position on the plate (e.g. "A1").
	Position string
	// Sample is the sample index within the well.
	Sample string
	// Status is the QC status value carried through from the input table.
	Status string
	// Locations is a comma-delimited list of subcellular locations.
	Locations string
	// Antibody is the antibody identifier (e.g. "HPA000992").
	Antibody string
	// EnsemblIDs is a comma-delimited list of Ensembl gene IDs.
	EnsemblIDs string
	// GeneNames is a comma-delimited list of gene symbols.
	GeneNames string
	// ZSlice is an optional z-stack tag (e.g. "z01").
	ZSlice string
	// Locator says where this sample's image bytes come from.
	Locator SourceLocator
}

// Key returns the tile identity for this record.
func (s *SampleRecord) Key() SampleKey {
	return SampleKey{
		PlateID:  s.PlateID,
		Position: s.Position,
		Sample:   s.Sample,
		ZSlice:   s.ZSlice,
	}
}

// Validate checks the fields required to construct fetch tasks.
// A validation failure here is a configuration error: the input table
// is unusable and no tasks may be scheduled from it.
func (s *SampleRecord) Validate() error {
	var missing []string
	if s.PlateID == "" {
		missing = append(missing, "plate id")
	}
	if s.Position == "" {
		missing = append(missing, "position")
	}
	if s.Sample == "" {
		missing = append(missing, "sample")
	}
	if s.Antibody == "" && !s.Locator.IsLocal() {
		// Remote URL construction needs the antibody path segment.
		missing = append(missing, "antibody")
	}
	if len(missing) > 0 {
		return fmt.Errorf("sample record missing %s", strings.Join(missing, ", "))
	}
	return s.Locator.Validate()
}
