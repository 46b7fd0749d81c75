package domain

import "time"

// RunStatus is the outcome of one pipeline run.
// Values include RunStatusSuccess and RunStatusFailed.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunResult is the outcome of one pipeline run, logged to etl_runs.
type RunResult struct {
	RunID            string     `gorm:"type:text;primaryKey" json:"run_id"`
	Source           string     `gorm:"type:text;not null;index:idx_etl_runs_source" json:"source"`
	Status           RunStatus  `gorm:"type:text;not null;index:idx_etl_runs_status" json:"status"`
	RecordsProcessed int        `gorm:"default:0" json:"records_processed"`
	StartTime        time.Time  `gorm:"not null;index:idx_etl_runs_start_time" json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	DurationSeconds  *float64   `json:"duration_seconds,omitempty"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	Metadata         JSONMap    `gorm:"type:text" json:"metadata,omitempty"`
}

// TableName returns the database table name for RunResult.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (RunResult) TableName() string {
	return "etl_runs"
}

// Finish stamps the end time and duration.
// Parameters:
//   - end: wall-clock completion time.
//
// Returns: none.
func (r *RunResult) Finish(end time.Time) {
	r.EndTime = &end
	secs := end.Sub(r.StartTime).Seconds()
	r.DurationSeconds = &secs
}

// Duration reports the run duration; ok is false until the run has finished.
func (r *RunResult) Duration() (time.Duration, bool) {
	if r.EndTime == nil {
		return 0, false
	}
	return r.EndTime.Sub(r.StartTime), true
}

// Succeeded reports whether the run ended with RunStatusSuccess.
func (r *RunResult) Succeeded() bool {
	return r.Status == RunStatusSuccess
}
