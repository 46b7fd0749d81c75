package pipeline

import "fmt"

// ExtractionError is fatal for one run: the fetch failed permanently or retries ran out.
type ExtractionError struct {
	Source   string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s failed after %d attempt(s): %v", e.Source, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ValidationError describes one raw item dropped during transform.
type ValidationError struct {
	Source string
	Index  int
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s record %d failed validation: %v", e.Source, e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransformError describes one raw item that could not be converted for another reason.
type TransformError struct {
	Source string
	Index  int
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s record %d failed to transform: %v", e.Source, e.Index, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// LoadError is fatal for one run. Processed records were written and checkpointed before the failure.
type LoadError struct {
	Source    string
	Processed int
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s failed after %d record(s): %v", e.Source, e.Processed, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
