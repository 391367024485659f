package config

import "time"

// Stage modes
const (
	ModeGenerate = "generate"
	ModeSweep    = "sweep"
)

// Failure policies
const (
	FailureContinue = "continue"
	FailureAbort    = "abort"
)

// Config represents one sweep file: an executable, execution settings and the
// ordered stages to run against it
type Config struct {
	LogLevel          string  `yaml:"log_level"`
	Executable        string  `yaml:"executable"`
	Workdir           string  `yaml:"workdir,omitempty"`
	MaxParallel       int     `yaml:"max_parallel,omitempty"`
	FailurePolicy     string  `yaml:"failure_policy,omitempty"`
	InvocationTimeout string  `yaml:"invocation_timeout,omitempty"` // e.g., "30m"
	Manifest          string  `yaml:"manifest,omitempty"`
	Stages            []Stage `yaml:"stages"`
}

// Stage is one block of the experiment: either artifact generation or a
// learning/testing sweep
type Stage struct {
	Name       string    `yaml:"name"`
	Mode       string    `yaml:"mode"` // generate or sweep
	Enabled    *bool     `yaml:"enabled,omitempty"`
	Executable string    `yaml:"executable,omitempty"`
	Axes       []Axis    `yaml:"axes"`
	Counters   []Counter `yaml:"counters,omitempty"`

	// generate mode
	Prefix       string `yaml:"prefix,omitempty"`
	Extension    string `yaml:"extension,omitempty"`
	NameTemplate string `yaml:"name_template,omitempty"`
	Instances    int    `yaml:"instances,omitempty"`

	// sweep mode
	Output     string `yaml:"output,omitempty"`
	OutputFlag string `yaml:"output_flag,omitempty"`
	Save       string `yaml:"save,omitempty"`
	SaveFlag   string `yaml:"save_flag,omitempty"`
	Repeat     int    `yaml:"repeat,omitempty"`
	StartIndex int    `yaml:"start_index,omitempty"`

	Args         []Arg `yaml:"args,omitempty"`
	TrailingArgs []Arg `yaml:"trailing_args,omitempty"`
}

// Axis is a named list of candidate values. Labels, when present, replace
// the values in file names.
type Axis struct {
	Name   string   `yaml:"name"`
	Values []any    `yaml:"values"`
	Labels []string `yaml:"labels,omitempty"`
}

// Counter is a named instance index running over [0, count)
type Counter struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// Arg is one command-line fragment. Value and When are templates.
type Arg struct {
	Flag     string `yaml:"flag"`
	Value    string `yaml:"value,omitempty"`
	When     string `yaml:"when,omitempty"`
	Optional bool   `yaml:"optional,omitempty"`
}

// IsEnabled reports whether the stage runs by default
func (s *Stage) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// GetInvocationTimeout parses the invocation timeout. Zero means no timeout.
func (c *Config) GetInvocationTimeout() (time.Duration, error) {
	if c.InvocationTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.InvocationTimeout)
}

// StageByName returns the named stage
func (c *Config) StageByName(name string) (*Stage, bool) {
	for i := range c.Stages {
		if c.Stages[i].Name == name {
			return &c.Stages[i], true
		}
	}
	return nil, false
}
