package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context logger through a run.
const (
	// FieldRunID identifies one pipeline run (UUID)
	FieldRunID = "run_id"

	// FieldSource is the pipeline source name
	FieldSource = "source"

	// FieldStage is extract, transform or load
	FieldStage = "stage"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"
)

// Metric fields, attached per entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldRetries    = "retries"
	FieldDelayMs    = "delay_ms"
	FieldStatus     = "status"
)
