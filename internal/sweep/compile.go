package sweep

import (
	"fmt"

	"github.com/GoSim-25-26J-441/xp-sweep/pkg/config"
)

// FromConfig compiles every stage of cfg, enabled or not
func FromConfig(cfg *config.Config) ([]*Stage, error) {
	stages := make([]*Stage, 0, len(cfg.Stages))
	for i := range cfg.Stages {
		st, err := CompileStage(&cfg.Stages[i])
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, nil
}

// CompileStage converts a validated config stage: values become typed, and
// every template is parsed once.
func CompileStage(cs *config.Stage) (*Stage, error) {
	st := &Stage{
		Name:       cs.Name,
		Mode:       Mode(cs.Mode),
		Executable: cs.Executable,
		Prefix:     cs.Prefix,
		Extension:  cs.Extension,
		Instances:  cs.Instances,
		OutputFlag: cs.OutputFlag,
		SaveFlag:   cs.SaveFlag,
		Repeat:     cs.Repeat,
		StartIndex: cs.StartIndex,
	}

	for _, ca := range cs.Axes {
		axis, err := NewAxis(ca.Name, ca.Values...)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", cs.Name, err)
		}
		for i, label := range ca.Labels {
			axis.Values[i] = axis.Values[i].WithLabel(label)
		}
		st.Axes = append(st.Axes, axis)
	}
	for _, cc := range cs.Counters {
		st.Counters = append(st.Counters, Counter{Name: cc.Name, Count: cc.Count})
	}

	var err error
	if cs.NameTemplate != "" {
		if st.NameTemplate, err = ParseTemplate(cs.Name+".name_template", cs.NameTemplate); err != nil {
			return nil, fmt.Errorf("stage %s: %w", cs.Name, err)
		}
	}
	if cs.Output != "" {
		if st.Output, err = ParseTemplate(cs.Name+".output", cs.Output); err != nil {
			return nil, fmt.Errorf("stage %s: %w", cs.Name, err)
		}
	}
	if cs.Save != "" {
		if st.Save, err = ParseTemplate(cs.Name+".save", cs.Save); err != nil {
			return nil, fmt.Errorf("stage %s: %w", cs.Name, err)
		}
	}

	if st.Args, err = compileArgs(cs.Name+".args", cs.Args); err != nil {
		return nil, fmt.Errorf("stage %s: %w", cs.Name, err)
	}
	if st.TrailingArgs, err = compileArgs(cs.Name+".trailing_args", cs.TrailingArgs); err != nil {
		return nil, fmt.Errorf("stage %s: %w", cs.Name, err)
	}

	switch st.Mode {
	case ModeGenerate, ModeSweep:
	default:
		return nil, fmt.Errorf("stage %s: %w: %q", cs.Name, ErrUnknownMode, cs.Mode)
	}
	if st.Mode == ModeSweep && st.Output == nil {
		return nil, fmt.Errorf("stage %s: sweep stage needs an output template", cs.Name)
	}

	return st, nil
}

func compileArgs(prefix string, args []config.Arg) ([]ArgSpec, error) {
	specs := make([]ArgSpec, 0, len(args))
	for i, a := range args {
		spec := ArgSpec{Flag: a.Flag, Optional: a.Optional}
		name := fmt.Sprintf("%s[%d]", prefix, i)
		if a.Value != "" {
			t, err := ParseTemplate(name, a.Value)
			if err != nil {
				return nil, err
			}
			spec.Value = t
		}
		if a.When != "" {
			t, err := ParseTemplate(name+".when", a.When)
			if err != nil {
				return nil, err
			}
			spec.When = t
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Select filters stages by name, keeping configured order. With no names,
// the enabled stages are returned.
func Select(cfg *config.Config, stages []*Stage, names []string) ([]*Stage, error) {
	if len(names) == 0 {
		var out []*Stage
		for i, st := range stages {
			if cfg.Stages[i].IsEnabled() {
				out = append(out, st)
			}
		}
		return out, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := cfg.StageByName(n); !ok {
			return nil, fmt.Errorf("unknown stage: %s", n)
		}
		wanted[n] = true
	}
	var out []*Stage
	for _, st := range stages {
		if wanted[st.Name] {
			out = append(out, st)
		}
	}
	return out, nil
}
