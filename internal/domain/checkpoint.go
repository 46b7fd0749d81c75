package domain

import "time"

// Checkpoint records how far a load got for one source.
// At most one non-completed checkpoint per source is active; completion is never undone.
type Checkpoint struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Source           string    `gorm:"type:text;not null;index:idx_etl_checkpoints_source" json:"source"`
	Marker           JSONMap   `gorm:"type:text" json:"marker"`
	RecordsProcessed int       `gorm:"default:0" json:"records_processed"`
	CreatedAt        time.Time `json:"created_at"`
	Completed        bool      `gorm:"default:false;index:idx_etl_checkpoints_completed" json:"completed"`
}

// TableName returns the database table name for Checkpoint.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Checkpoint) TableName() string {
	return "etl_checkpoints"
}

// MarkerLastIndex is the marker key holding the number of records written so far.
const MarkerLastIndex = "last_index"

// LastIndex reads the last_index marker, accepting any JSON number representation.
func (c *Checkpoint) LastIndex() (int, bool) {
	if c == nil || c.Marker == nil {
		return 0, false
	}
	switch v := c.Marker[MarkerLastIndex].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
