// Package export builds downloadable archives of the attendance and leave
// ledgers. Archive builds run as background jobs so a large ledger tree
// never blocks the chat surface.
package export

import (
	"errors"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

type Status string

const (
	Queued    Status = "queued"
	Running   Status = "running"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
	Canceled  Status = "canceled"
)

// Job is the externally visible state of one export run.
type Job struct {
	ID          openapi_types.UUID `json:"jobId"`
	Status      Status             `json:"status"`
	Progress    int                `json:"progress"`
	RequestedAt time.Time          `json:"requestedAt"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	FinishedAt  *time.Time         `json:"finishedAt,omitempty"`
	Result      *Result            `json:"result,omitempty"`
	ErrMessage  string             `json:"error,omitempty"`
}

// Result describes a finished archive. ExpiresAt is when the retention
// sweep removes the file.
type Result struct {
	ArchivePath string    `json:"archivePath"`
	Size        int64     `json:"size"`
	Ledgers     int       `json:"ledgers"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

var ErrNotFound = errors.New("export job not found")

// ConflictError reports that an export is already in flight; the existing
// job id lets the caller poll it instead.
type ConflictError struct {
	JobID string
}

func (e ConflictError) Error() string { return "export already in progress" }

// RateLimitError reports that exports are requested faster than the
// configured cooldown allows.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string { return "export rate limited" }

func isTerminal(s Status) bool {
	return s == Succeeded || s == Failed || s == Canceled
}
