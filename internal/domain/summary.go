package domain

import "time"

// FlagChange is one quality column update made by a QC run. The struct tags
// drive the audit CSV export and the Postgres sink.
type FlagChange struct {
	RunID     string `csv:"run_id" json:"run_id"`
	Partition string `csv:"partition" json:"partition"`
	Table     string `csv:"table" json:"table"`
	ReportID  string `csv:"report_id" json:"report_id"`
	Column    string `csv:"column" json:"column"`
	Stage     string `csv:"stage" json:"stage"`
	Check     string `csv:"check" json:"check"`
	// From is the cell text before the run.
	From string `csv:"from" json:"from"`
	To   int    `csv:"to" json:"to"`
}

// TableSummary counts the final codes of one quality column.
type TableSummary struct {
	Rows  int         `json:"rows"`
	Codes map[int]int `json:"codes"`
}

// Summary describes one processed partition.
type Summary struct {
	RunID       string                  `json:"run_id"`
	Partition   string                  `json:"partition"`
	StartedAt   time.Time               `json:"started_at"`
	Duration    float64                 `json:"duration_seconds"`
	Reports     int                     `json:"reports"`
	Blacklisted int                     `json:"blacklisted"`
	Generic     int                     `json:"generic"`
	Changes     int                     `json:"changes"`
	Tables      map[string]TableSummary `json:"tables"`
	// CheckErrors lists checks that failed under the isolate policy.
	CheckErrors []string `json:"check_errors,omitempty"`
}
