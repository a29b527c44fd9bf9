package ir

// Version constants for the signature key format and the engine.
const (
	// KeyVersion is the ResolvedSignature key format version.
	KeyVersion = "1"

	// EngineVersion is the eventbind engine version.
	EngineVersion = "0.1.0"
)
