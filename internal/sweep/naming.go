package sweep

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/GoSim-25-26J-441/xp-sweep/pkg/utils"
)

// Fields are the named values a template can reference: axis names map to
// Values, counter names to ints, plus the fields each stage mode adds
// (instance, artifact, base, attempt, output, save).
type Fields map[string]any

// With returns a copy of f extended with key=value
func (f Fields) With(key string, value any) Fields {
	out := make(Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[key] = value
	return out
}

var templateFuncs = template.FuncMap{
	"pad3": pad3,
}

// Template turns named fields into a path or an argument. Referencing a
// field that does not exist is an error.
//
//	data_hmm/esn_{{.esn_size}}_1_0.99_{{.leak}}{{if .forward.Bool}}_for{{end}}_n{{pad3 .instance}}.json
type Template struct {
	tmpl *template.Template
}

// ParseTemplate parses src. name is only used in error messages.
func ParseTemplate(name, src string) (*Template, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(templateFuncs).
		Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Template{tmpl: tmpl}, nil
}

// MustTemplate is ParseTemplate for literals known to be valid
func MustTemplate(name, src string) *Template {
	t, err := ParseTemplate(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

// Render executes the template against fields
func (t *Template) Render(fields Fields) (string, error) {
	var b strings.Builder
	if err := t.tmpl.Execute(&b, fields); err != nil {
		return "", fmt.Errorf("render template %s: %w", t.tmpl.Name(), err)
	}
	return b.String(), nil
}

func pad3(v any) (string, error) {
	switch n := v.(type) {
	case int:
		return utils.Pad3(n), nil
	case Value:
		if n.Kind() != KindInt {
			return "", fmt.Errorf("pad3: %s value %s is not an integer", n.Kind(), n.Raw())
		}
		return utils.Pad3(n.Int()), nil
	default:
		return "", fmt.Errorf("pad3: unsupported operand %T", v)
	}
}

// ArtifactName builds the default generate-mode artifact name:
// <prefix>_<value1>_..._<valueN>_n<instance:03d><ext>
func ArtifactName(prefix string, values []Value, instance int, ext string) string {
	return artifactName(prefix, values, nil, nil, instance, ext)
}

// artifactName inserts one _<counter>NNN fragment per stage counter between
// the values and the instance suffix.
func artifactName(prefix string, values []Value, counters []string, indices []int, instance int, ext string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, v := range values {
		b.WriteByte('_')
		b.WriteString(v.String())
	}
	for i, name := range counters {
		b.WriteString(CounterSuffix(name, indices[i]))
	}
	b.WriteString(InstanceSuffix(instance))
	b.WriteString(ext)
	return b.String()
}

// CounterSuffix returns _<name>NNN
func CounterSuffix(name string, index int) string {
	return "_" + name + utils.Pad3(index)
}

// InstanceSuffix returns _nNNN
func InstanceSuffix(instance int) string {
	return "_n" + utils.Pad3(instance)
}

// AttemptSuffix returns _NNN
func AttemptSuffix(attempt int) string {
	return "_" + utils.Pad3(attempt)
}
