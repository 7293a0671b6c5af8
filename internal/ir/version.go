package ir

// Version constants for the IR schema and the pass pipeline.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// PipelineVersion is the invprop pass pipeline version.
	PipelineVersion = "0.1.0"
)
