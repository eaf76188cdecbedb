package constants

// IndexState is the phase a batch run is in.
type IndexState string

// Stable values (they appear in logs and reports).
const (
	IndexStateIdle       IndexState = "IDLE"
	IndexStatePurging    IndexState = "PURGING"
	IndexStateRendering  IndexState = "RENDERING"
	IndexStateExtracting IndexState = "EXTRACTING"
	IndexStateFlushing   IndexState = "FLUSHING"
	IndexStateDone       IndexState = "DONE"
)

// FieldStatus marks whether the oracle produced a usable answer for a field.
type FieldStatus string

const (
	FieldExtracted   FieldStatus = "EXTRACTED"
	FieldUnextracted FieldStatus = "UNEXTRACTED"
)
