package domain

import "time"

// SchemaDriftReport describes how an observed record diverged from a source's expected layout.
// It is advisory; ingestion continues regardless of its content.
type SchemaDriftReport struct {
	ID             uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Source         string      `gorm:"type:text;not null;index:idx_schema_drift_source" json:"source"`
	DetectedAt     time.Time   `gorm:"not null;index:idx_schema_drift_detected_at" json:"detected_at"`
	ExpectedSchema JSONMap     `gorm:"type:text" json:"expected_schema"`
	ActualSchema   JSONMap     `gorm:"type:text" json:"actual_schema"`
	Confidence     float64     `json:"confidence"`
	Warnings       StringArray `gorm:"type:text" json:"warnings"`
	Renames        JSONMap     `gorm:"type:text" json:"renames,omitempty"`
}

// TableName returns the database table name for SchemaDriftReport.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (SchemaDriftReport) TableName() string {
	return "schema_drift_logs"
}

// HasDrift reports whether the detector produced any warning.
func (r *SchemaDriftReport) HasDrift() bool {
	return r != nil && len(r.Warnings) > 0
}
