package model

import "time"

// JobResult is the outcome of one print job as reported to its caller.
type JobResult struct {
	OK          bool      `json:"ok"`
	Message     string    `json:"message"`
	PrinterID   string    `json:"printerId"`
	JobID       string    `json:"jobId"`
	Attempts    int       `json:"attempts"`
	Operation   string    `json:"operation"`
	CompletedAt time.Time `json:"completedAt"`
}

// Record converts the result into its history row.
func (r JobResult) Record() JobRecord {
	return JobRecord{
		JobID:       r.JobID,
		PrinterID:   r.PrinterID,
		Operation:   r.Operation,
		OK:          r.OK,
		Message:     r.Message,
		Attempts:    r.Attempts,
		CompletedAt: r.CompletedAt,
	}
}
