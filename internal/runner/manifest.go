package runner

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/GoSim-25-26J-441/xp-sweep/internal/ledger"
	"github.com/GoSim-25-26J-441/xp-sweep/internal/sweep"
)

var manifestHeader = []string{
	"sweep_id", "stage", "seq", "instance", "status", "exit_code", "duration_ms", "output", "params", "command",
}

// Manifest appends one CSV row per finished invocation, so result files can
// be matched to their parameters without parsing file names.
type Manifest struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// NewManifest writes the header and returns a manifest over w
func NewManifest(w io.Writer) (*Manifest, error) {
	m := &Manifest{w: csv.NewWriter(w)}
	if err := m.writeRow(manifestHeader); err != nil {
		return nil, err
	}
	return m, nil
}

// OpenManifest appends to the CSV file at path, creating it and its
// directory if needed. The header is written only to a new file.
func OpenManifest(path string) (*Manifest, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create manifest dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat manifest: %w", err)
	}

	m := &Manifest{w: csv.NewWriter(f), closer: f}
	if info.Size() == 0 {
		if err := m.writeRow(manifestHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return m, nil
}

// Write records one finished invocation
func (m *Manifest) Write(sweepID string, inv sweep.Invocation, status ledger.Status, res Result) error {
	row := []string{
		sweepID,
		inv.Stage,
		strconv.Itoa(inv.Seq),
		strconv.Itoa(inv.Instance),
		string(status),
		strconv.Itoa(res.ExitCode),
		strconv.FormatInt(res.Duration.Milliseconds(), 10),
		inv.Output,
		formatParams(inv.Combination),
		inv.Command(),
	}
	return m.writeRow(row)
}

func (m *Manifest) writeRow(row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.w.Write(row); err != nil {
		return fmt.Errorf("write manifest row: %w", err)
	}
	m.w.Flush()
	return m.w.Error()
}

func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.w.Flush()
	if m.closer == nil {
		return m.w.Error()
	}
	return m.closer.Close()
}

// formatParams renders name=value pairs, axes then counters
func formatParams(c sweep.Combination) string {
	parts := make([]string, 0, len(c.Names)+len(c.Counters))
	for i, name := range c.Names {
		parts = append(parts, name+"="+c.Values[i].String())
	}
	for i, name := range c.Counters {
		parts = append(parts, name+"="+strconv.Itoa(c.Indices[i]))
	}
	return strings.Join(parts, ";")
}
