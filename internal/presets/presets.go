// Package presets embeds the sweep files of the reference experiments so
// they can be run without writing YAML.
package presets

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/GoSim-25-26J-441/xp-sweep/pkg/config"
)

//go:embed data/*.yaml
var files embed.FS

// List returns the preset names, sorted
func List() []string {
	entries, err := fs.ReadDir(files, "data")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	slices.Sort(names)
	return names
}

// Raw returns the YAML of a preset
func Raw(name string) ([]byte, error) {
	data, err := files.ReadFile(path.Join("data", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(List(), ", "))
	}
	return data, nil
}

// Load parses and validates a preset
func Load(name string) (*config.Config, error) {
	data, err := Raw(name)
	if err != nil {
		return nil, err
	}
	cfg, err := config.ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	return cfg, nil
}
