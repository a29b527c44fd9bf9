package ir

// ObservationKind names a lifecycle or cache event emitted by the engine.
type ObservationKind string

const (
	ObsSynthesize   ObservationKind = "synthesize"    // Template built for a new signature
	ObsCacheHit     ObservationKind = "cache_hit"     // Template reused
	ObsSubscribe    ObservationKind = "subscribe"     // Handler attached to an event source
	ObsUnsubscribe  ObservationKind = "unsubscribe"   // Handler detached from an event source
	ObsInvoke       ObservationKind = "invoke"        // Target called
	ObsDebounce     ObservationKind = "debounce_fire" // Debounced call posted to its dispatcher
	ObsRootChange   ObservationKind = "root_change"   // Root identity changed
	ObsBindingError ObservationKind = "error"         // Regeneration failed; binding fell back to no-op
)

// Observation is one journal record.
//
// Seq comes from the engine's logical clock and orders observations within
// one Binder. It is never a wall-clock value.
type Observation struct {
	Seq          int64           `json:"seq"`
	Kind         ObservationKind `json:"kind"`
	BindingID    string          `json:"binding_id,omitempty"`
	Event        string          `json:"event,omitempty"`
	Path         string          `json:"path,omitempty"`
	SignatureKey string          `json:"signature_key,omitempty"`
	Signature    string          `json:"signature,omitempty"`
	Detail       string          `json:"detail,omitempty"`
}
