package config

import (
	"fmt"
	"os"
)

// LoadConfig loads and parses a sweep file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate re-checks a Config after it was modified in code (CLI overrides).
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", cfg.MaxParallel)
	}

	if cfg.FailurePolicy != FailureContinue && cfg.FailurePolicy != FailureAbort {
		return fmt.Errorf("invalid failure_policy: %s (must be continue or abort)", cfg.FailurePolicy)
	}

	if timeout, err := cfg.GetInvocationTimeout(); err != nil {
		return fmt.Errorf("invalid invocation_timeout %s: %w", cfg.InvocationTimeout, err)
	} else if timeout < 0 {
		return fmt.Errorf("invocation_timeout cannot be negative, got %s", cfg.InvocationTimeout)
	}

	if len(cfg.Stages) == 0 {
		return fmt.Errorf("at least one stage must be defined")
	}
	stageNames := make(map[string]bool)
	for i := range cfg.Stages {
		st := &cfg.Stages[i]
		if st.Name == "" {
			return fmt.Errorf("stage %d: name cannot be empty", i)
		}
		if stageNames[st.Name] {
			return fmt.Errorf("duplicate stage name: %s", st.Name)
		}
		stageNames[st.Name] = true

		if err := validateStage(st); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name, err)
		}
	}

	return nil
}

// validateStage validates one stage
func validateStage(st *Stage) error {
	if st.Executable == "" {
		return fmt.Errorf("executable cannot be empty")
	}

	fieldNames := make(map[string]bool)
	for _, reserved := range reservedFields(st.Mode) {
		fieldNames[reserved] = true
	}

	for i, axis := range st.Axes {
		if axis.Name == "" {
			return fmt.Errorf("axis %d: name cannot be empty", i)
		}
		if fieldNames[axis.Name] {
			return fmt.Errorf("axis %s: name is already used", axis.Name)
		}
		fieldNames[axis.Name] = true
		if len(axis.Values) == 0 {
			return fmt.Errorf("axis %s: at least one value must be defined", axis.Name)
		}
		if len(axis.Labels) > 0 && len(axis.Labels) != len(axis.Values) {
			return fmt.Errorf("axis %s: %d labels for %d values", axis.Name, len(axis.Labels), len(axis.Values))
		}
	}

	for i, counter := range st.Counters {
		if counter.Name == "" {
			return fmt.Errorf("counter %d: name cannot be empty", i)
		}
		if fieldNames[counter.Name] {
			return fmt.Errorf("counter %s: name is already used", counter.Name)
		}
		fieldNames[counter.Name] = true
		if counter.Count <= 0 {
			return fmt.Errorf("counter %s: count must be positive, got %d", counter.Name, counter.Count)
		}
	}

	switch st.Mode {
	case ModeGenerate:
		if st.Prefix == "" && st.NameTemplate == "" {
			return fmt.Errorf("generate stage needs a prefix or a name_template")
		}
		if st.Instances <= 0 {
			return fmt.Errorf("instances must be positive, got %d", st.Instances)
		}
		if st.Output != "" || st.Save != "" {
			return fmt.Errorf("output and save are only valid in sweep stages")
		}
	case ModeSweep:
		if st.Output == "" {
			return fmt.Errorf("sweep stage needs an output template")
		}
		if st.Repeat <= 0 {
			return fmt.Errorf("repeat must be positive, got %d", st.Repeat)
		}
		if st.StartIndex < 0 {
			return fmt.Errorf("start_index cannot be negative, got %d", st.StartIndex)
		}
		if st.Instances != 0 {
			return fmt.Errorf("instances is only valid in generate stages, use counters")
		}
	default:
		return fmt.Errorf("invalid mode %q (must be generate or sweep)", st.Mode)
	}

	for i, arg := range append(append([]Arg{}, st.Args...), st.TrailingArgs...) {
		if arg.Flag == "" && arg.Value == "" {
			return fmt.Errorf("arg %d: flag and value cannot both be empty", i)
		}
	}

	return nil
}

// reservedFields lists the template fields a stage provides on its own
func reservedFields(mode string) []string {
	switch mode {
	case ModeGenerate:
		return []string{"instance", "artifact"}
	case ModeSweep:
		return []string{"base", "attempt", "output", "save"}
	}
	return nil
}
