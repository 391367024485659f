package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/GoSim-25-26J-441/xp-sweep/internal/sweep"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/logger"
)

// ErrInvocationsFailed is returned by Run when at least one invocation failed
var ErrInvocationsFailed = errors.New("invocations failed")

// FailedInvocation is kept in summaries so the failing command can be rerun by hand
type FailedInvocation struct {
	ID       string `json:"id"`
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error"`
}

// StageSummary reports the outcome of one stage
type StageSummary struct {
	Stage     string             `json:"stage"`
	Mode      sweep.Mode         `json:"mode"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
	Duration  time.Duration      `json:"duration_ns"`
	Failures  []FailedInvocation `json:"failures,omitempty"`
}

// Summary reports the outcome of a whole sweep
type Summary struct {
	SweepID  string         `json:"sweep_id"`
	Stages   []StageSummary `json:"stages"`
	Duration time.Duration  `json:"duration_ns"`
}

func (s *Summary) Total() int {
	n := 0
	for _, st := range s.Stages {
		n += st.Total
	}
	return n
}

func (s *Summary) Succeeded() int {
	n := 0
	for _, st := range s.Stages {
		n += st.Succeeded
	}
	return n
}

func (s *Summary) Failed() int {
	n := 0
	for _, st := range s.Stages {
		n += st.Failed
	}
	return n
}

func (s *Summary) Skipped() int {
	n := 0
	for _, st := range s.Stages {
		n += st.Skipped
	}
	return n
}

// Err returns ErrInvocationsFailed wrapped with the failure count, or nil
func (s *Summary) Err() error {
	if failed := s.Failed(); failed > 0 {
		return fmt.Errorf("%w: %s of %s", ErrInvocationsFailed,
			humanize.Comma(int64(failed)), humanize.Comma(int64(s.Total())))
	}
	return nil
}

// String renders the summary for a terminal
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sweep %s: %s invocations, %s succeeded, %s failed, %s skipped in %s\n",
		s.SweepID,
		humanize.Comma(int64(s.Total())),
		humanize.Comma(int64(s.Succeeded())),
		humanize.Comma(int64(s.Failed())),
		humanize.Comma(int64(s.Skipped())),
		s.Duration.Round(time.Millisecond))
	for _, st := range s.Stages {
		fmt.Fprintf(&b, "  %-8s %-8s %s/%s ok",
			st.Stage, st.Mode,
			humanize.Comma(int64(st.Succeeded)), humanize.Comma(int64(st.Total)))
		if st.Failed > 0 {
			fmt.Fprintf(&b, ", %s failed", humanize.Comma(int64(st.Failed)))
		}
		if st.Skipped > 0 {
			fmt.Fprintf(&b, ", %s skipped", humanize.Comma(int64(st.Skipped)))
		}
		b.WriteString("\n")
		for _, f := range st.Failures {
			fmt.Fprintf(&b, "    exit %d: %s\n", f.ExitCode, f.Command)
		}
	}
	return b.String()
}

// Log writes the summary and every failed command at the matching level
func (s *Summary) Log() {
	for _, st := range s.Stages {
		for _, f := range st.Failures {
			logger.Error("failed invocation",
				"stage", st.Stage,
				"id", f.ID,
				"command", f.Command,
				"exit_code", f.ExitCode,
				"error", f.Error)
		}
	}

	attrs := []any{
		"sweep_id", s.SweepID,
		"total", s.Total(),
		"succeeded", s.Succeeded(),
		"failed", s.Failed(),
		"skipped", s.Skipped(),
		"duration", s.Duration.String(),
	}
	if s.Failed() > 0 {
		logger.Warn("sweep finished with failures", attrs...)
		return
	}
	logger.Info("sweep finished", attrs...)
}
