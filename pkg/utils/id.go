package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateSweepID generates a sweep ID with a timestamp prefix
func GenerateSweepID() string {
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("sweep-%s-%s", timestamp, uuid.NewString()[:8])
}

// InvocationID builds the ledger key of one invocation. It is stable for a
// given sweep, stage and plan position.
func InvocationID(sweepID, stage string, seq int) string {
	return fmt.Sprintf("%s/%s/%06d", sweepID, stage, seq)
}
