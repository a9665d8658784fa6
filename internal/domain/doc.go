// Package domain models the marine report tables the QC engine reads and
// writes, and the outcome taxonomy every check reports in.
//
// # Tables
//
// A partition is one month of one source: a header table with one row per
// report and zero or more observation tables (sst, at, dpt, slp, ws, wd, ...)
// with at most one row per report. Rows are joined by report_id only; row
// order carries no meaning.
//
//	header:        report_id | primary_station_id | report_timestamp | latitude | longitude |
//	               report_quality | location_quality | report_time_quality | history | ...
//	observations:  report_id | date_time | latitude | longitude | observation_value |
//	               quality_flag | ...
//
// Missing cells are empty or one of "null", "nan", "none" (any case).
//
// # Outcomes
//
// Every check returns one of four outcomes:
//
//	Passed      the data satisfied the check
//	Failed      the data violated the check
//	Untestable  the check could not be evaluated (bad configuration, no buddies)
//	Untested    the check was never reached
//
// # Quality columns
//
// Outcomes are written into quality columns through fixed mappings. The same
// columns also carry sentinel codes that no check ever produces:
//
//	report_quality       0 passed | 1 failed | 6 blacklisted | 88 generic platform id
//	location_quality     0 passed | 2 failed | 3 untestable
//	report_time_quality  0 passed | 4 untestable | 5 failed
//	quality_flag         0 passed | 1 failed | 2 untestable | 3 not checked / missing | 6 blacklisted
//
// A blacklisted report is removed from every table before checks run. A
// report with a generic platform id (SHIP, PLAT, ...) is reset to 0 and
// kept out of per-platform track checks, because its rows belong to many
// different platforms.
//
// report_quality is derived: a failed location (2) or a failed or
// untestable time (4, 5) fails the report (1).
//
// # History
//
// Every surviving header row gets ";<UTC yyyy-mm-dd HH:MM:SS>. <explanation>"
// appended to history once per run. See [HistoryEntry].
package domain
