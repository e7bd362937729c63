package models

// IngestRun records the outcome of one scan.
type IngestRun struct {
	ID          string `gorm:"primaryKey" json:"id"` // uuid
	StartedAt   int64  `gorm:"not null;index" json:"started_at"`
	FinishedAt  int64  `gorm:"not null" json:"finished_at"`
	Reprocess   bool   `gorm:"not null" json:"reprocess"`
	TotalFiles  int    `gorm:"not null" json:"total_files"`
	Processed   int    `gorm:"not null" json:"processed"`
	Skipped     int    `gorm:"not null" json:"skipped"`
	Failed      int    `gorm:"not null" json:"failed"`
	GroupsFound int    `gorm:"not null" json:"groups_found"`
}

func (IngestRun) TableName() string {
	return "ingest_runs"
}
