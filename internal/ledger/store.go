package ledger

import (
	"context"
	"errors"
	"time"
)

// Status of one recorded invocation
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound       = errors.New("invocation not found")
	ErrNotInitialized = errors.New("store is not initialized")
)

// Record is the durable trace of one external invocation
type Record struct {
	ID              string   `json:"id"`
	SweepID         string   `json:"sweep_id"`
	Stage           string   `json:"stage"`
	Seq             int      `json:"seq"`
	Args            []string `json:"args"`
	Output          string   `json:"output"`
	Status          Status   `json:"status"`
	ExitCode        int      `json:"exit_code"`
	Error           string   `json:"error,omitempty"`
	StartedAtUnixMs int64    `json:"started_at_unix_ms"`
	EndedAtUnixMs   int64    `json:"ended_at_unix_ms,omitempty"`
}

// Query filters List. Zero values match everything; Limit <= 0 means 50.
type Query struct {
	SweepID string
	Stage   string
	Limit   int
}

// Summary counts the records of one sweep by status
type Summary struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Store persists invocation records across the life of a sweep
type Store interface {
	Init(ctx context.Context) error
	// Begin records rec as running. Recording an existing id again resets it.
	Begin(ctx context.Context, rec Record) error
	// Finish marks the invocation succeeded when errMsg is empty and
	// exitCode is zero, failed otherwise.
	Finish(ctx context.Context, id string, exitCode int, errMsg string) error
	Get(ctx context.Context, id string) (Record, bool, error)
	List(ctx context.Context, q Query) ([]Record, error)
	Summary(ctx context.Context, sweepID string) (Summary, error)
}

const defaultListLimit = 50

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func finishedStatus(exitCode int, errMsg string) Status {
	if exitCode == 0 && errMsg == "" {
		return StatusSucceeded
	}
	return StatusFailed
}

func (s *Summary) add(status Status, n int) {
	s.Total += n
	switch status {
	case StatusRunning:
		s.Running += n
	case StatusSucceeded:
		s.Succeeded += n
	case StatusFailed:
		s.Failed += n
	}
}
