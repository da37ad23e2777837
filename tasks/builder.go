// Package tasks expands canonical sample records into the per-channel
// fetch tasks a run requires.
//
// Expansion is pure data transformation: no network or filesystem
// access happens here, which keeps unit testing deterministic. A
// malformed sample is a configuration error that aborts the whole
// expansion; it is never deferred into a per-task failure.
package tasks

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pithecene-io/stainfetch/types"
)

// antibodyPrefix strips the leading catalog prefix and zero padding
// from an antibody id: image servers key directories by the bare
// antibody number (HPA000992 -> 992, CAB004343 -> 4343).
var antibodyPrefix = regexp.MustCompile(`^HPA0*|^CAB0*`)

// AntibodySegment returns the URL path segment for an antibody id.
func AntibodySegment(antibody string) string {
	return antibodyPrefix.ReplaceAllString(antibody, "")
}

// Build expands each sample into one task per channel.
//
// Destination paths are constructed deterministically from the sample
// key and channel name under outputRoot, one subdirectory per channel.
// Remote samples resolve to a constructed URL under the sample's base
// URL; local samples resolve to a source path inside the pre-staged
// archive, which uses the same one-directory-per-channel layout.
//
// The returned order is samples in input order, channels in canonical
// order within each sample.
func Build(samples []types.SampleRecord, outputRoot, imageSuffix string) ([]types.ChannelTask, error) {
	out := make([]types.ChannelTask, 0, len(samples)*len(types.Channels()))
	seenDest := make(map[string]int)
	seenKey := make(map[string]int)

	for i := range samples {
		sample := &samples[i]
		if err := sample.Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}

		key := sample.Key()
		for _, channel := range types.Channels() {
			task := types.ChannelTask{
				Key:     key,
				Channel: channel,
				// Any reference or target stain may legally be stood in
				// for by same-channel bytes when fake images are requested.
				Synthesizable: true,
			}
			fileName := task.FileName(imageSuffix)
			task.DestPath = filepath.Join(outputRoot, string(channel), fileName)

			if sample.Locator.IsLocal() {
				task.SourcePath = filepath.Join(sample.Locator.LocalDir, string(channel), fileName)
			} else {
				task.SourceURL = buildSourceURL(sample.Locator.BaseURL, sample.Antibody, fileName)
			}

			taskKey := key.Stem() + string(channel)
			if prev, dup := seenKey[taskKey]; dup {
				return nil, fmt.Errorf("sample %d duplicates (tile, channel) pair of sample %d: %s/%s",
					i, prev, key, channel)
			}
			seenKey[taskKey] = i

			if prev, dup := seenDest[task.DestPath]; dup {
				return nil, fmt.Errorf("sample %d destination collides with sample %d: %s",
					i, prev, task.DestPath)
			}
			seenDest[task.DestPath] = i

			out = append(out, task)
		}
	}
	return out, nil
}

// buildSourceURL constructs the remote locator for one channel file:
// <base>/<antibody segment>/<file name>. Works for both http(s) and
// s3 bases; the base never carries a trailing slash after joining.
func buildSourceURL(baseURL, antibody, fileName string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + AntibodySegment(antibody) + "/" + fileName
}
