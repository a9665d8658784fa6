package domain

// Column names with a fixed meaning in every partition.
const (
	ColReportID          = "report_id"
	ColPrimaryStationID  = "primary_station_id"
	ColReportTimestamp   = "report_timestamp"
	ColReportQuality     = "report_quality"
	ColLocationQuality   = "location_quality"
	ColReportTimeQuality = "report_time_quality"
	ColHistory           = "history"
	ColQualityFlag       = "quality_flag"
	ColObservationValue  = "observation_value"
)

// report_quality codes. Blacklisted and Generic share the column with the
// outcome codes but are never produced by a check.
const (
	ReportQualityPassed      = 0
	ReportQualityFailed      = 1
	ReportQualityBlacklisted = 6
	ReportQualityGeneric     = 88
)

// location_quality codes.
const (
	LocationQualityPassed     = 0
	LocationQualityFailed     = 2
	LocationQualityUntestable = 3
)

// report_time_quality codes.
const (
	TimeQualityPassed     = 0
	TimeQualityUntestable = 4
	TimeQualityFailed     = 5
)

// quality_flag codes on observation tables. Outcomes map onto 0-3 directly;
// a missing value is stamped as not checked.
const (
	QualityFlagMissing     = 3
	QualityFlagBlacklisted = 6
)

// LocationCode maps a position check outcome onto location_quality.
func LocationCode(o Outcome) int {
	switch o {
	case Failed:
		return LocationQualityFailed
	case Untestable:
		return LocationQualityUntestable
	default:
		return LocationQualityPassed
	}
}

// TimeCode maps a time check outcome onto report_time_quality.
func TimeCode(o Outcome) int {
	switch o {
	case Failed:
		return TimeQualityFailed
	case Untestable, Untested:
		return TimeQualityUntestable
	default:
		return TimeQualityPassed
	}
}

// FlagCode maps an outcome onto an observation quality_flag.
func FlagCode(o Outcome) int {
	return int(o)
}

// LocationFailed reports whether a location_quality code marks a bad position.
func LocationFailed(code int) bool {
	return code == LocationQualityFailed
}

// TimeFailed reports whether a report_time_quality code marks a bad time.
func TimeFailed(code int) bool {
	return code == TimeQualityUntestable || code == TimeQualityFailed
}

// DeriveReportQuality combines location and time quality into report_quality.
// Sentinel codes already present are kept.
func DeriveReportQuality(current, location, reportTime int) int {
	if current == ReportQualityBlacklisted || current == ReportQualityGeneric {
		return current
	}
	if LocationFailed(location) || TimeFailed(reportTime) {
		return ReportQualityFailed
	}
	return current
}
