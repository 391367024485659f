package runner

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSummaryTotals(t *testing.T) {
	s := &Summary{
		SweepID: "s1",
		Stages: []StageSummary{
			{Stage: "traj", Mode: "generate", Total: 1000, Succeeded: 1000},
			{Stage: "learn", Mode: "sweep", Total: 2000, Succeeded: 1500, Failed: 2, Skipped: 498,
				Failures: []FailedInvocation{{ID: "s1/learn/000001", Command: "xp -o r_000", ExitCode: 1}}},
		},
		Duration: 90 * time.Second,
	}

	if s.Total() != 3000 || s.Succeeded() != 2500 || s.Failed() != 2 || s.Skipped() != 498 {
		t.Errorf("unexpected totals: %d %d %d %d", s.Total(), s.Succeeded(), s.Failed(), s.Skipped())
	}

	err := s.Err()
	if !errors.Is(err, ErrInvocationsFailed) {
		t.Fatalf("expected ErrInvocationsFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "2 of 3,000") {
		t.Errorf("error should count failures: %v", err)
	}

	out := s.String()
	for _, want := range []string{"3,000 invocations", "2,500 succeeded", "1,500/2,000 ok", "498 skipped", "exit 1: xp -o r_000"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary %q should contain %q", out, want)
		}
	}
}

func TestSummaryErrNilWhenClean(t *testing.T) {
	s := &Summary{Stages: []StageSummary{{Stage: "learn", Total: 4, Succeeded: 4}}}
	if err := s.Err(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
