package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../config/sweep.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.Executable != "wbuild/xp/xp-001-pomdp" {
		t.Errorf("Expected executable 'wbuild/xp/xp-001-pomdp', got '%s'", cfg.Executable)
	}
	if len(cfg.Stages) != 3 {
		t.Fatalf("Expected 3 stages, got %d", len(cfg.Stages))
	}

	learn, ok := cfg.StageByName("learn")
	if !ok {
		t.Fatal("Expected a learn stage")
	}
	if learn.Mode != ModeSweep {
		t.Errorf("Expected learn mode 'sweep', got '%s'", learn.Mode)
	}
	if learn.Repeat != 2 {
		t.Errorf("Expected repeat 2, got %d", learn.Repeat)
	}
	if learn.OutputFlag != "-o" {
		t.Errorf("Expected default output flag '-o', got '%s'", learn.OutputFlag)
	}
	if learn.Executable != cfg.Executable {
		t.Errorf("Expected stage to inherit executable, got '%s'", learn.Executable)
	}
	if len(learn.Axes) != 4 {
		t.Fatalf("Expected 4 axes, got %d", len(learn.Axes))
	}

	// yaml keeps 1.0 a float and 500 an int
	regul := learn.Axes[3]
	if _, ok := regul.Values[2].(float64); !ok {
		t.Errorf("Expected regul value 1.0 to decode as float64, got %T", regul.Values[2])
	}
	if _, ok := learn.Axes[0].Values[0].(int); !ok {
		t.Errorf("Expected traj_size to decode as int, got %T", learn.Axes[0].Values[0])
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfigYAMLString(`
executable: /bin/true
stages:
  - name: learn
    mode: sweep
    output: out
    axes:
      - {name: regul, values: [0.01]}
`)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.MaxParallel != 1 {
		t.Errorf("Expected default max_parallel 1, got %d", cfg.MaxParallel)
	}
	if cfg.FailurePolicy != FailureContinue {
		t.Errorf("Expected default failure policy continue, got %s", cfg.FailurePolicy)
	}
	st := cfg.Stages[0]
	if st.Repeat != 1 || st.OutputFlag != "-o" || st.SaveFlag != "-s" {
		t.Errorf("Unexpected sweep defaults: repeat=%d output_flag=%s save_flag=%s", st.Repeat, st.OutputFlag, st.SaveFlag)
	}
	if !st.IsEnabled() {
		t.Error("Stage without enabled flag should be enabled")
	}
}

func TestConfigValidation(t *testing.T) {
	validStage := func() Stage {
		return Stage{
			Name:       "learn",
			Mode:       ModeSweep,
			Executable: "/bin/true",
			Output:     "result",
			OutputFlag: "-o",
			Repeat:     1,
			Axes:       []Axis{{Name: "regul", Values: []any{0.01, 0.1}}},
		}
	}
	base := func(stages ...Stage) *Config {
		return &Config{
			LogLevel:      "info",
			MaxParallel:   1,
			FailurePolicy: FailureContinue,
			Stages:        stages,
		}
	}

	tests := []struct {
		name        string
		config      func() *Config
		expectError bool
	}{
		{
			name:        "Valid config",
			config:      func() *Config { return base(validStage()) },
			expectError: false,
		},
		{
			name: "Invalid log level",
			config: func() *Config {
				c := base(validStage())
				c.LogLevel = "invalid"
				return c
			},
			expectError: true,
		},
		{
			name:        "No stages",
			config:      func() *Config { return base() },
			expectError: true,
		},
		{
			name: "Zero max_parallel",
			config: func() *Config {
				c := base(validStage())
				c.MaxParallel = 0
				return c
			},
			expectError: true,
		},
		{
			name: "Unknown failure policy",
			config: func() *Config {
				c := base(validStage())
				c.FailurePolicy = "retry"
				return c
			},
			expectError: true,
		},
		{
			name: "Bad invocation timeout",
			config: func() *Config {
				c := base(validStage())
				c.InvocationTimeout = "soon"
				return c
			},
			expectError: true,
		},
		{
			name:        "Duplicate stage name",
			config:      func() *Config { return base(validStage(), validStage()) },
			expectError: true,
		},
		{
			name: "Empty axis",
			config: func() *Config {
				st := validStage()
				st.Axes = []Axis{{Name: "regul"}}
				return base(st)
			},
			expectError: true,
		},
		{
			name: "Duplicate axis name",
			config: func() *Config {
				st := validStage()
				st.Axes = append(st.Axes, Axis{Name: "regul", Values: []any{1}})
				return base(st)
			},
			expectError: true,
		},
		{
			name: "Axis shadows reserved field",
			config: func() *Config {
				st := validStage()
				st.Axes = append(st.Axes, Axis{Name: "attempt", Values: []any{1}})
				return base(st)
			},
			expectError: true,
		},
		{
			name: "Label count mismatch",
			config: func() *Config {
				st := validStage()
				st.Axes[0].Labels = []string{"only-one"}
				return base(st)
			},
			expectError: true,
		},
		{
			name: "Non-positive counter",
			config: func() *Config {
				st := validStage()
				st.Counters = []Counter{{Name: "esn", Count: 0}}
				return base(st)
			},
			expectError: true,
		},
		{
			name: "Sweep without output",
			config: func() *Config {
				st := validStage()
				st.Output = ""
				return base(st)
			},
			expectError: true,
		},
		{
			name: "Negative start index",
			config: func() *Config {
				st := validStage()
				st.StartIndex = -1
				return base(st)
			},
			expectError: true,
		},
		{
			name: "Generate without prefix",
			config: func() *Config {
				return base(Stage{Name: "traj", Mode: ModeGenerate, Executable: "/bin/true", Instances: 1,
					Axes: []Axis{{Name: "traj_size", Values: []any{500}}}})
			},
			expectError: true,
		},
		{
			name: "Generate without instances",
			config: func() *Config {
				return base(Stage{Name: "traj", Mode: ModeGenerate, Executable: "/bin/true", Prefix: "traj",
					Axes: []Axis{{Name: "traj_size", Values: []any{500}}}})
			},
			expectError: true,
		},
		{
			name: "Unknown mode",
			config: func() *Config {
				st := validStage()
				st.Mode = "learn"
				return base(st)
			},
			expectError: true,
		},
		{
			name: "Missing executable",
			config: func() *Config {
				st := validStage()
				st.Executable = ""
				return base(st)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config())
			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestGetInvocationTimeout(t *testing.T) {
	cfg := &Config{}
	if d, err := cfg.GetInvocationTimeout(); err != nil || d != 0 {
		t.Errorf("Expected no timeout, got %v, %v", d, err)
	}
	cfg.InvocationTimeout = "90s"
	if d, err := cfg.GetInvocationTimeout(); err != nil || d != 90*time.Second {
		t.Errorf("Expected 90s, got %v, %v", d, err)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/sweep.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	malformedFile := filepath.Join(tmpDir, "malformed.yaml")

	content := `
log_level: info
stages:
  - name: learn
    axes: [unclosed
`
	if err := os.WriteFile(malformedFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err := LoadConfig(malformedFile)
	if err == nil {
		t.Error("Expected error when parsing malformed YAML")
	}
}

func TestMarshalConfigYAMLRoundTrip(t *testing.T) {
	cfg, err := LoadConfig("../../config/sweep.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	text, err := MarshalConfigYAML(cfg)
	if err != nil {
		t.Fatalf("MarshalConfigYAML failed: %v", err)
	}
	if !strings.Contains(text, "name: learn") {
		t.Errorf("Expected marshalled yaml to contain the learn stage, got:\n%s", text)
	}
	again, err := ParseConfigYAMLString(text)
	if err != nil {
		t.Fatalf("Re-parsing marshalled config failed: %v", err)
	}
	if len(again.Stages) != len(cfg.Stages) {
		t.Errorf("Expected %d stages after round trip, got %d", len(cfg.Stages), len(again.Stages))
	}
}
