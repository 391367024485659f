package sweep

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgSpec is one fragment of the external command line.
//
// A nil Value makes a bare flag (--res_forward). A nil Flag makes a
// positional argument. When, if set, must render to a boolean; false drops
// the fragment. Optional drops the fragment when Value renders empty, so an
// unset path is never passed as "".
type ArgSpec struct {
	Flag     string
	Value    *Template
	When     *Template
	Optional bool
}

// Render returns the argv fragment for fields, possibly empty
func (a ArgSpec) Render(fields Fields) ([]string, error) {
	if a.When != nil {
		cond, err := a.When.Render(fields)
		if err != nil {
			return nil, err
		}
		ok, err := parseCondition(cond)
		if err != nil {
			return nil, fmt.Errorf("flag %s: %w: got %q", a.Flag, ErrBadCondition, cond)
		}
		if !ok {
			return nil, nil
		}
	}

	if a.Value == nil {
		if a.Flag == "" {
			return nil, nil
		}
		return []string{a.Flag}, nil
	}

	value, err := a.Value.Render(fields)
	if err != nil {
		return nil, err
	}
	if value == "" && a.Optional {
		return nil, nil
	}
	if a.Flag == "" {
		return []string{value}, nil
	}
	return []string{a.Flag, value}, nil
}

func parseCondition(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// RenderArgs renders specs in order into one argv slice
func RenderArgs(specs []ArgSpec, fields Fields) ([]string, error) {
	var out []string
	for _, spec := range specs {
		frag, err := spec.Render(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, frag...)
	}
	return out, nil
}
