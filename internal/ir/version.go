package ir

// Version constants for the record schema and engine.
const (
	// SchemaVersion is the record payload schema version.
	SchemaVersion = "1"

	// EngineVersion is the strata engine version.
	EngineVersion = "0.3.0"
)
