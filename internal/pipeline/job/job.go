// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package job implements the durable FIFO queue backing resume processing.

It defines the Job entity, its storage contract, and the HTTP surface for
submission, status, and cancellation. The queue is authoritative: the
engine holds no state of its own and recovers intent entirely from these
rows after a restart.

# State Machine

	queued → processing → {completed, failed}
	queued → cancelled

No other edges exist. Only queued jobs carry a position ≥ 1; the processing
job has position 0; terminal states leave it meaningless.
*/
package job

import (
	"encoding/json"
	"time"
)

// # Domain Entities

// Job statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// TerminalStatuses are the states a job can never leave.
var TerminalStatuses = []string{StatusCompleted, StatusFailed, StatusCancelled}

// Job is one queued resume extraction.
type Job struct {
	// ID uniquely identifies the job (UUIDv7, so creation order sorts).
	ID string `json:"id"`
	// PrincipalID is the submitting owner.
	PrincipalID string `json:"-"`
	// PayloadRef points at the stored resume text.
	PayloadRef string `json:"payloadRef"`
	// Status is one of the Status* constants.
	Status string `json:"status"`
	// Position is the 1-based place in the queue while queued, 0 while
	// processing. Advisory; reads recompute it from created-at order.
	Position int `json:"position"`
	// EstimatedWaitSeconds is the wait hint computed at enqueue time.
	EstimatedWaitSeconds int `json:"estimatedWaitSeconds,omitempty"`
	// CreatedAt orders the FIFO.
	CreatedAt time.Time `json:"createdAt"`
	// StartedAt is set when the engine claims the job.
	StartedAt *time.Time `json:"startedAt,omitempty"`
	// CompletedAt is set on any terminal transition, including cancel.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	// Result holds the extraction record JSON for completed jobs.
	Result json.RawMessage `json:"result,omitempty"`
	// BundleName is the published landing-page directory for completed
	// jobs, empty when publishing failed.
	BundleName string `json:"bundleName,omitempty"`
	// ErrorKind is the failure classification for failed jobs.
	ErrorKind string `json:"errorKind,omitempty"`
	// ErrorMessage is the user-facing sentence for failed jobs. The raw
	// provider message is never stored here.
	ErrorMessage string `json:"errorMessage,omitempty"`
	// ProcessingSeconds measures claim-to-terminal wall time.
	ProcessingSeconds float64 `json:"processingSeconds,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (job *Job) Terminal() bool {
	switch job.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// # Field Identifiers

// Global field names for validation and response mapping in the job domain.
const (
	FieldText    = "text"
	FieldJobID   = "jobID"
	FieldJob     = "job"
	FieldMessage = "message"
)
