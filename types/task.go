package types

// ChannelTask is one required file fetch: a single channel of a single
// tile. Created by the task builder, consumed and discarded by the
// download orchestrator once settled.
type ChannelTask struct {
	// Key references the parent tile by identity, not ownership.
	Key SampleKey
	// Channel is the stain this task fetches.
	Channel Channel
	// SourceURL is the resolved remote locator (http(s):// or s3://).
	// Empty for local-copy tasks.
	SourceURL string
	// SourcePath is the resolved local source file for local-copy
	// tasks. Empty for remote tasks.
	SourcePath string
	// DestPath is the destination file. Unique across the whole task
	// set; no two tasks write the same file.
	DestPath string
	// Synthesizable is true when this task's bytes may legally be
	// substituted by another task's bytes of the same channel.
	// Consulted only in fake-image mode.
	Synthesizable bool
}

// FileName returns the destination base name, encoding plate, position,
// sample, optional z tag and channel so a downstream consumer can
// reconstruct the tile-to-files mapping purely from filenames.
func (t *ChannelTask) FileName(suffix string) string {
	return t.Key.Stem() + string(t.Channel) + suffix
}
