package registry

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/user/scanhub/pkg/model"
)

type overrideEntry struct {
	StartPath         string `yaml:"start_path"`
	LogsPath          string `yaml:"logs_path"`
	ResultPath        string `yaml:"result_path"`
	CompletionPattern string `yaml:"completion_pattern"`
}

// ApplyOverrides loads a YAML file mapping tool kind to endpoint/pattern
// overrides and applies it to the descriptor table. Called once at
// startup, before any poller runs; Validate runs afterwards so an
// override can not silently break the pattern invariants.
func ApplyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overrides map[model.ToolKind]overrideEntry
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("registry: failed to parse %s: %w", path, err)
	}

	for kind, o := range overrides {
		d, ok := descriptors[kind]
		if !ok {
			return fmt.Errorf("registry: override for unknown tool kind %q", kind)
		}
		if o.StartPath != "" {
			d.StartPath = o.StartPath
		}
		if o.LogsPath != "" {
			d.LogsPath = o.LogsPath
		}
		if o.ResultPath != "" {
			d.ResultPath = o.ResultPath
		}
		if o.CompletionPattern != "" {
			re, err := regexp.Compile(o.CompletionPattern)
			if err != nil {
				return fmt.Errorf("registry: bad completion pattern for %q: %w", kind, err)
			}
			d.CompletionPattern = re
		}
		descriptors[kind] = d
	}
	return Validate()
}
