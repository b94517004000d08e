package model

// RunSummary counts the audit runs stored in a time range.
type RunSummary struct {
	Runs         int64 `json:"runs"`
	FailedRuns   int64 `json:"failed_runs"`
	NonCompliant int64 `json:"non_compliant"`
}
