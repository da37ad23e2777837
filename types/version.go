package types

// ToolName is the canonical tool name used in logs and reports.
const ToolName = "stainfetch"

// Version is the canonical project version.
// CLI, report schema and journal schema share this version per the
// lockstep versioning policy.
const Version = "0.2.0"
