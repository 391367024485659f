package sweep

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Mode selects how a stage turns combinations into invocations
type Mode string

const (
	// ModeGenerate creates one artifact per combination and instance
	ModeGenerate Mode = "generate"
	// ModeSweep runs the learner once per combination and repeat attempt
	ModeSweep Mode = "sweep"
)

// Stage is a compiled, ready-to-plan block of the experiment
type Stage struct {
	Name       string
	Mode       Mode
	Executable string
	Axes       []Axis
	Counters   []Counter

	// generate mode
	Prefix       string
	Extension    string
	NameTemplate *Template
	Instances    int

	// sweep mode
	Output     *Template
	OutputFlag string
	Save       *Template
	SaveFlag   string
	Repeat     int
	StartIndex int

	Args         []ArgSpec
	TrailingArgs []ArgSpec
}

// Invocation is one fully resolved call of the external executable
type Invocation struct {
	Stage       string
	Seq         int
	Combination Combination
	// Instance is the artifact instance (generate) or the repeat attempt (sweep)
	Instance int
	// Args is the full argv, executable first
	Args []string
	// Output is the artifact path (generate) or the result path (sweep)
	Output string
	// Save is the model save path, empty when not configured
	Save string
}

// Command returns the argv joined for logs. Arguments that are empty or
// contain whitespace are quoted.
func (inv Invocation) Command() string {
	parts := make([]string, len(inv.Args))
	for i, a := range inv.Args {
		if a == "" || strings.ContainsAny(a, " \t\n") {
			a = strconv.Quote(a)
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

// Total returns the number of invocations the stage plans
func (s *Stage) Total() int {
	switch s.Mode {
	case ModeGenerate:
		return Count(s.Axes, s.generateCounters())
	case ModeSweep:
		return Count(s.Axes, s.Counters) * s.Repeat
	}
	return 0
}

// Combinations returns the number of distinct axis combinations, the unit
// progress is reported in
func (s *Stage) Combinations() int {
	return Count(s.Axes, nil)
}

func (s *Stage) generateCounters() []Counter {
	counters := make([]Counter, 0, len(s.Counters)+1)
	counters = append(counters, s.Counters...)
	return append(counters, Counter{Name: "instance", Count: s.Instances})
}

// Invocations lazily plans the stage in enumeration order. The sequence
// stops after the first error.
func (s *Stage) Invocations() iter.Seq2[Invocation, error] {
	return func(yield func(Invocation, error) bool) {
		switch s.Mode {
		case ModeGenerate:
			s.generateInvocations(yield)
		case ModeSweep:
			s.sweepInvocations(yield)
		default:
			yield(Invocation{}, fmt.Errorf("stage %s: %w: %q", s.Name, ErrUnknownMode, s.Mode))
		}
	}
}

// Plan materializes every invocation of the stage. Any naming error is
// reported before anything runs.
func (s *Stage) Plan() ([]Invocation, error) {
	plan := make([]Invocation, 0, s.Total())
	for inv, err := range s.Invocations() {
		if err != nil {
			return nil, err
		}
		plan = append(plan, inv)
	}
	return plan, nil
}

func (s *Stage) generateInvocations(yield func(Invocation, error) bool) {
	seq := 0
	for combo := range Product(s.Axes, s.generateCounters()) {
		last := len(combo.Indices) - 1
		instance := combo.Indices[last]
		fields := combo.Fields()

		artifact := artifactName(s.Prefix, combo.Values,
			combo.Counters[:last], combo.Indices[:last], instance, s.Extension)
		if s.NameTemplate != nil {
			var err error
			if artifact, err = s.NameTemplate.Render(fields); err != nil {
				yield(Invocation{}, fmt.Errorf("stage %s: %w", s.Name, err))
				return
			}
		}
		fields = fields.With("artifact", artifact)

		args, err := s.buildArgs(fields, nil)
		if err != nil {
			yield(Invocation{}, err)
			return
		}

		inv := Invocation{
			Stage:       s.Name,
			Seq:         seq,
			Combination: combo,
			Instance:    instance,
			Args:        args,
			Output:      artifact,
		}
		if !yield(inv, nil) {
			return
		}
		seq++
	}
}

func (s *Stage) sweepInvocations(yield func(Invocation, error) bool) {
	seq := 0
	for combo := range Product(s.Axes, s.Counters) {
		fields := combo.Fields()

		base, err := s.Output.Render(fields)
		if err != nil {
			yield(Invocation{}, fmt.Errorf("stage %s: %w", s.Name, err))
			return
		}
		fields = fields.With("base", base)

		var save string
		if s.Save != nil {
			if save, err = s.Save.Render(fields); err != nil {
				yield(Invocation{}, fmt.Errorf("stage %s: %w", s.Name, err))
				return
			}
		}
		fields = fields.With("save", save)

		for attempt := s.StartIndex; attempt < s.StartIndex+s.Repeat; attempt++ {
			output := base + AttemptSuffix(attempt)
			attemptFields := fields.With("attempt", attempt).With("output", output)

			var middle []string
			if save != "" {
				middle = append(middle, s.SaveFlag, save)
			}
			middle = append(middle, s.OutputFlag, output)

			args, err := s.buildArgs(attemptFields, middle)
			if err != nil {
				yield(Invocation{}, err)
				return
			}

			inv := Invocation{
				Stage:       s.Name,
				Seq:         seq,
				Combination: combo,
				Instance:    attempt,
				Args:        args,
				Output:      output,
				Save:        save,
			}
			if !yield(inv, nil) {
				return
			}
			seq++
		}
	}
}

// buildArgs lays out executable, args, middle (save/output), trailing args
func (s *Stage) buildArgs(fields Fields, middle []string) ([]string, error) {
	head, err := RenderArgs(s.Args, fields)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", s.Name, err)
	}
	tail, err := RenderArgs(s.TrailingArgs, fields)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", s.Name, err)
	}

	args := make([]string, 0, 1+len(head)+len(middle)+len(tail))
	args = append(args, s.Executable)
	args = append(args, head...)
	args = append(args, middle...)
	args = append(args, tail...)
	return args, nil
}
