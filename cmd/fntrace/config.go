// config.go loads the optional .fntrace.yml project configuration.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileName is the name of the optional project configuration file.
const configFileName = ".fntrace.yml"

// toolConfig is the project-level configuration, read from .fntrace.yml.
//
// All fields are optional; an absent or unreadable file means defaults.
type toolConfig struct {
	// Skip lists additional function name prefixes to exclude from
	// instrumentation, on top of the built-in exclusions.
	Skip []string `yaml:"skip"`

	// Output names the default trace destination file. Empty means
	// stdout. The FNTRACE_OUT environment variable overrides this.
	Output string `yaml:"output"`

	// Verbose enables per-file instrumentation statistics, as if -v
	// were passed on every invocation.
	Verbose bool `yaml:"verbose"`
}

// loadToolConfig finds and parses .fntrace.yml, walking up from dir so the
// tool can be invoked from anywhere inside a project. A missing file is not
// an error; a malformed one is reported and ignored so a typo in the config
// never blocks a build.
func loadToolConfig(dir string) *toolConfig {
	conf := &toolConfig{}

	path := findConfigFile(dir)
	if path == "" {
		return conf
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot read %s: %v\n", path, err)
		return conf
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring malformed %s: %v\n", path, err)
		return &toolConfig{}
	}
	return conf
}

// findConfigFile walks up from dir looking for .fntrace.yml; returns "" when
// there is none.
func findConfigFile(dir string) string {
	for {
		path := filepath.Join(dir, configFileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
