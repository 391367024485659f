package sweep

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func outputs(t *testing.T, st *Stage) []string {
	t.Helper()
	plan, err := st.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	out := make([]string, 0, len(plan))
	for _, inv := range plan {
		out = append(out, inv.Output)
	}
	return out
}

func TestGenerateArtifactNamesOrder(t *testing.T) {
	st := &Stage{
		Name:       "traj",
		Mode:       ModeGenerate,
		Executable: "xp",
		Prefix:     "traj",
		Instances:  2,
		Axes:       []Axis{MustAxis("traj_size", 500, 1000)},
		Args: []ArgSpec{
			{Flag: "--save_traj", Value: MustTemplate("a", "{{.artifact}}")},
		},
	}

	want := []string{"traj_500_n000", "traj_500_n001", "traj_1000_n000", "traj_1000_n001"}
	if diff := cmp.Diff(want, outputs(t, st)); diff != "" {
		t.Errorf("artifact names mismatch (-want +got):\n%s", diff)
	}

	plan, _ := st.Plan()
	if diff := cmp.Diff([]string{"xp", "--save_traj", "traj_500_n001"}, plan[1].Args); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if plan[1].Instance != 1 {
		t.Errorf("expected instance 1, got %d", plan[1].Instance)
	}
}

func TestGenerateCountersKeepArtifactsDistinct(t *testing.T) {
	st := &Stage{
		Name:       "esn",
		Mode:       ModeGenerate,
		Executable: "gen",
		Prefix:     "data/esn",
		Instances:  1,
		Axes:       []Axis{MustAxis("size", 10)},
		Counters:   []Counter{{Name: "seed", Count: 3}},
		Args: []ArgSpec{
			{Flag: "--save", Value: MustTemplate("a", "{{.artifact}}")},
		},
	}

	want := []string{"data/esn_10_seed000_n000", "data/esn_10_seed001_n000", "data/esn_10_seed002_n000"}
	got := outputs(t, st)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("artifact names mismatch (-want +got):\n%s", diff)
	}

	seen := make(map[string]bool, len(got))
	for _, name := range got {
		if seen[name] {
			t.Errorf("artifact %s planned twice", name)
		}
		seen[name] = true
	}
}

func TestGenerateNameTemplateOverride(t *testing.T) {
	st := &Stage{
		Name:         "hmm",
		Mode:         ModeGenerate,
		Executable:   "xp-003-hmm",
		NameTemplate: MustTemplate("n", "data_hmm/hmm_{{.hmm}}.json"),
		Instances:    1,
		Axes: []Axis{{Name: "hmm", Values: []Value{
			String("! .05 ABCDEFEDCB").WithLabel("p05ABCDEFEDCB"),
		}}},
		Args: []ArgSpec{
			{Flag: "--create_hmm", Value: MustTemplate("c", "{{.hmm.Raw}}")},
			{Flag: "--save_hmm", Value: MustTemplate("s", "{{.artifact}}")},
		},
	}
	plan, err := st.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"xp-003-hmm", "--create_hmm", "! .05 ABCDEFEDCB", "--save_hmm", "data_hmm/hmm_p05ABCDEFEDCB.json"}
	if diff := cmp.Diff(want, plan[0].Args); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepRegulEndToEnd(t *testing.T) {
	st := &Stage{
		Name:       "learn",
		Mode:       ModeSweep,
		Executable: "xp",
		Axes:       []Axis{MustAxis("regul", 0.01, 0.1)},
		Output:     MustTemplate("o", "result_{{.regul}}"),
		OutputFlag: "-o",
		Repeat:     2,
		StartIndex: 0,
		Args: []ArgSpec{
			{Flag: "--regul", Value: MustTemplate("r", "{{.regul}}")},
		},
	}

	plan, err := st.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := [][]string{
		{"xp", "--regul", "0.01", "-o", "result_0.01_000"},
		{"xp", "--regul", "0.01", "-o", "result_0.01_001"},
		{"xp", "--regul", "0.1", "-o", "result_0.1_000"},
		{"xp", "--regul", "0.1", "-o", "result_0.1_001"},
	}
	got := make([][]string, 0, len(plan))
	for i, inv := range plan {
		got = append(got, inv.Args)
		if inv.Seq != i {
			t.Errorf("invocation %d has seq %d", i, inv.Seq)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepRepeatSuffixes(t *testing.T) {
	tests := []struct {
		repeat int
		start  int
	}{
		{1, 0},
		{3, 0},
		{4, 10},
		{2, 998},
	}
	for _, tt := range tests {
		st := &Stage{
			Name:       "learn",
			Mode:       ModeSweep,
			Executable: "xp",
			Axes:       []Axis{MustAxis("leak", 0.1, 0.5, 0.9)},
			Output:     MustTemplate("o", "r_{{.leak}}"),
			OutputFlag: "-o",
			Repeat:     tt.repeat,
			StartIndex: tt.start,
		}
		plan, err := st.Plan()
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if len(plan) != 3*tt.repeat {
			t.Fatalf("repeat=%d: expected %d invocations, got %d", tt.repeat, 3*tt.repeat, len(plan))
		}
		if st.Total() != len(plan) {
			t.Errorf("Total() = %d, plan has %d", st.Total(), len(plan))
		}
		for i, inv := range plan {
			attempt := tt.start + i%tt.repeat
			if inv.Instance != attempt {
				t.Errorf("invocation %d: attempt %d, want %d", i, inv.Instance, attempt)
			}
			if !strings.HasSuffix(inv.Output, AttemptSuffix(attempt)) {
				t.Errorf("invocation %d: output %q lacks suffix %s", i, inv.Output, AttemptSuffix(attempt))
			}
		}
	}
}

func TestSweepFortyEightInvocations(t *testing.T) {
	st := &Stage{
		Name:       "learn",
		Mode:       ModeSweep,
		Executable: "xp",
		Axes: []Axis{
			MustAxis("traj_size", 100, 1000, 2000, 10000),
			MustAxis("leak", 0.1, 0.5, 0.9),
			MustAxis("regul", 0.01, 0.1, 1, 10),
		},
		Output:     MustTemplate("o", "result_{{.traj_size}}_{{.leak}}_{{.regul}}.data"),
		OutputFlag: "-o",
		Repeat:     1,
	}
	plan, err := st.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan) != 48 {
		t.Fatalf("expected 48 invocations, got %d", len(plan))
	}
	seen := make(map[string]bool)
	for _, inv := range plan {
		if seen[inv.Output] {
			t.Errorf("duplicate output path %s", inv.Output)
		}
		seen[inv.Output] = true
	}
	if plan[0].Output != "result_100_0.1_0.01.data_000" {
		t.Errorf("first output = %q", plan[0].Output)
	}
	if plan[47].Output != "result_10000_0.9_10.data_000" {
		t.Errorf("last output = %q", plan[47].Output)
	}
}

func TestSweepOptionalFlags(t *testing.T) {
	newStage := func(noise, save string) *Stage {
		st := &Stage{
			Name:       "learn",
			Mode:       ModeSweep,
			Executable: "xp",
			Axes:       []Axis{MustAxis("regul", 0.1)},
			Output:     MustTemplate("o", "result"),
			OutputFlag: "-o",
			SaveFlag:   "-s",
			Repeat:     1,
			Args: []ArgSpec{
				{Flag: "--regul", Value: MustTemplate("r", "{{.regul}}")},
				{Flag: "-n", Value: MustTemplate("n", noise), Optional: true},
			},
		}
		if save != "" {
			st.Save = MustTemplate("s", save)
		}
		return st
	}

	tests := []struct {
		name  string
		noise string
		save  string
		want  []string
	}{
		{
			name: "neither configured",
			want: []string{"xp", "--regul", "0.1", "-o", "result_000"},
		},
		{
			name:  "noise only",
			noise: "noise_0_n000.data",
			want:  []string{"xp", "--regul", "0.1", "-n", "noise_0_n000.data", "-o", "result_000"},
		},
		{
			name: "save only, derived from base",
			save: "saved_{{.base}}.json",
			want: []string{"xp", "--regul", "0.1", "-s", "saved_result.json", "-o", "result_000"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := newStage(tt.noise, tt.save).Plan()
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, plan[0].Args); diff != "" {
				t.Errorf("argv mismatch (-want +got):\n%s", diff)
			}
			for _, a := range plan[0].Args {
				if a == "" {
					t.Error("argv must never contain an empty string")
				}
			}
		})
	}
}

func TestSweepSaveRendersEmptyIsOmitted(t *testing.T) {
	st := &Stage{
		Name:       "learn",
		Mode:       ModeSweep,
		Executable: "xp",
		Axes:       []Axis{MustAxis("keep", false)},
		Output:     MustTemplate("o", "result"),
		OutputFlag: "-o",
		Save:       MustTemplate("s", "{{if .keep.Bool}}saved.json{{end}}"),
		SaveFlag:   "-s",
		Repeat:     1,
	}
	plan, err := st.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if diff := cmp.Diff([]string{"xp", "-o", "result_000"}, plan[0].Args); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepTrailingArgs(t *testing.T) {
	st := &Stage{
		Name:       "test",
		Mode:       ModeSweep,
		Executable: "xp-004-rdsom",
		Axes:       []Axis{MustAxis("beta", 0.05)},
		Output:     MustTemplate("o", "result_test"),
		OutputFlag: "--save_result",
		Repeat:     1,
		Args: []ArgSpec{
			{Flag: "--dsom_beta", Value: MustTemplate("b", "{{.beta}}")},
		},
		TrailingArgs: []ArgSpec{
			{Flag: "--testing"},
			{Flag: "--nb_test", Value: MustTemplate("n", "2")},
		},
	}
	plan, err := st.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{"xp-004-rdsom", "--dsom_beta", "0.05", "--save_result", "result_test_000", "--testing", "--nb_test", "2"}
	if diff := cmp.Diff(want, plan[0].Args); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepCountersAndNaming(t *testing.T) {
	st := &Stage{
		Name:       "learn",
		Mode:       ModeSweep,
		Executable: "xp",
		Axes:       []Axis{MustAxis("forward", true, false)},
		Counters:   []Counter{{Name: "esn", Count: 2}, {Name: "traj", Count: 1}},
		Output:     MustTemplate("o", "r{{if .forward.Bool}}_for{{end}}_e{{pad3 .esn}}_t{{pad3 .traj}}"),
		OutputFlag: "-o",
		Repeat:     1,
	}
	want := []string{
		"r_for_e000_t000_000",
		"r_for_e001_t000_000",
		"r_e000_t000_000",
		"r_e001_t000_000",
	}
	if diff := cmp.Diff(want, outputs(t, st)); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	st := &Stage{
		Name:       "learn",
		Mode:       ModeSweep,
		Executable: "xp",
		Axes:       []Axis{MustAxis("regul", 0.01, 0.1, 1.0, 10.0), MustAxis("leak", 0.1, 0.9)},
		Counters:   []Counter{{Name: "esn", Count: 3}},
		Output:     MustTemplate("o", "r_{{.regul}}_{{.leak}}_e{{pad3 .esn}}"),
		OutputFlag: "-o",
		Repeat:     2,
	}
	first, err := st.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	second, err := st.Plan()
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if diff := cmp.Diff(first, second, cmp.AllowUnexported(Value{})); diff != "" {
		t.Errorf("plans differ (-first +second):\n%s", diff)
	}
}

func TestPlanReportsTemplateErrors(t *testing.T) {
	st := &Stage{
		Name:       "learn",
		Mode:       ModeSweep,
		Executable: "xp",
		Axes:       []Axis{MustAxis("regul", 0.1)},
		Output:     MustTemplate("o", "r_{{.typo}}"),
		OutputFlag: "-o",
		Repeat:     1,
	}
	if _, err := st.Plan(); err == nil || !strings.Contains(err.Error(), "learn") {
		t.Errorf("expected an error naming the stage, got %v", err)
	}
}

func TestUnknownModeYieldsError(t *testing.T) {
	st := &Stage{Name: "odd", Mode: Mode("train")}
	_, err := st.Plan()
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
	if st.Total() != 0 {
		t.Errorf("unknown mode should plan nothing, Total() = %d", st.Total())
	}
}

func TestInvocationCommand(t *testing.T) {
	inv := Invocation{Args: []string{"xp", "--regul", "0.1"}}
	if inv.Command() != "xp --regul 0.1" {
		t.Errorf("Command() = %q", inv.Command())
	}

	inv = Invocation{Args: []string{"xp", "--create_hmm", "! .05 ABCDEFEDCB"}}
	if got := inv.Command(); got != `xp --create_hmm "! .05 ABCDEFEDCB"` {
		t.Errorf("Command() = %q", got)
	}
}
