package model

import "encoding/json"

// Player is a tracked game account. The roster owns most fields; the
// orchestrator only reads ID/Nickname and writes LastRedeemedAt.
type Player struct {
	ID             string `json:"id"`
	Nickname       string `json:"nickname"`
	AddedAt        int64  `json:"added_at"`
	LastRedeemedAt *int64 `json:"last_redeemed_at"`
}

// Code is a promotional gift code. Inactive codes are never attempted.
type Code struct {
	Code        string `json:"code"`
	Note        string `json:"note"`
	Active      bool   `json:"active"`
	AddedAt     int64  `json:"added_at"`
	LastTriedAt *int64 `json:"last_tried_at"`
}

// BlockReason marks a code as permanently unredeemable for every player.
type BlockReason string

const (
	BlockExpired BlockReason = "expired"
	BlockLimit   BlockReason = "limit"
)

// PairRecord is the idempotency unit keyed by (player, code).
// A non-nil RedeemedAt means the pair must never be attempted again;
// a non-nil BlockedReason means the whole code is dead for all players.
type PairRecord struct {
	PlayerID      string       `json:"player_id"`
	Code          string       `json:"code"`
	RedeemedAt    *int64       `json:"redeemed_at"`
	BlockedReason *BlockReason `json:"blocked_reason"`
}

// HistoryStatus is the normalized outcome category of one attempt.
type HistoryStatus string

const (
	StatusSuccess         HistoryStatus = "success"
	StatusAlreadyRedeemed HistoryStatus = "already_redeemed"
	StatusError           HistoryStatus = "error"
	StatusSkipped         HistoryStatus = "skipped"
)

// HistoryEntry is one appended attempt record. Raw keeps the upstream
// payload verbatim for forensic replay.
type HistoryEntry struct {
	ID       int64           `json:"id,omitempty"`
	TS       int64           `json:"ts"`
	PlayerID string          `json:"player_id"`
	Code     string          `json:"code"`
	Status   HistoryStatus   `json:"status"`
	Message  string          `json:"message"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// JobStatus is the job state machine value. Queued jobs have not started,
// rate_limited jobs are paused and resumable; cancelled and finished are
// terminal.
type JobStatus string

const (
	JobQueued      JobStatus = "queued"
	JobRunning     JobStatus = "running"
	JobRateLimited JobStatus = "rate_limited"
	JobCancelled   JobStatus = "cancelled"
	JobFinished    JobStatus = "finished"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCancelled || s == JobFinished
}

// Job is one orchestration run over the work set computed at creation.
type Job struct {
	ID         string    `json:"id"`
	Status     JobStatus `json:"status"`
	StartedAt  int64     `json:"started_at"`
	FinishedAt *int64    `json:"finished_at"`
	TotalTasks int       `json:"total_tasks"`
	Done       int       `json:"done"`
	Successes  int       `json:"successes"`
	Failures   int       `json:"failures"`
	LastEvent  string    `json:"last_event"`
	OnlyCode   string    `json:"only_code,omitempty"`
	OnlyPlayer string    `json:"only_player,omitempty"`
}

// Pair identifies one unit of redemption work.
type Pair struct {
	PlayerID string
	Code     string
}

// CreateJobRequest is the DTO for creating a redemption job.
type CreateJobRequest struct {
	OnlyCode   string `json:"only_code" validate:"omitempty,notblank,max=64"`
	OnlyPlayer string `json:"only_player" validate:"omitempty,notblank,max=64"`
}

// CreateJobResponse returns the new job id and the size of the work set so
// a caller can inspect it before starting execution.
type CreateJobResponse struct {
	JobID      string `json:"job_id"`
	TotalTasks int    `json:"total_tasks"`
}

// CancelJobsRequest is the DTO for cancelling one or all active jobs.
type CancelJobsRequest struct {
	JobID string `json:"job_id" validate:"omitempty,notblank,max=64"`
}

// CancelJobsResponse reports which jobs were transitioned to cancelled.
type CancelJobsResponse struct {
	Cancelled []string `json:"cancelled"`
}

// AddPlayerRequest is the DTO for adding a roster player.
type AddPlayerRequest struct {
	ID       string `json:"id" validate:"required,notblank,max=64"`
	Nickname string `json:"nickname" validate:"max=255"`
}

// AddCodeRequest is the DTO for adding a gift code.
type AddCodeRequest struct {
	Code string `json:"code" validate:"required,notblank,max=64"`
	Note string `json:"note" validate:"max=255"`
}

// UpdateCodeRequest is the DTO for toggling a code or editing its note.
type UpdateCodeRequest struct {
	Active *bool   `json:"active"`
	Note   *string `json:"note" validate:"omitempty,max=255"`
}
