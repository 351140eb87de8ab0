// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the options of the dependence-graph tools and the
// leveled diagnostic sink the analyses log to.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// PtaVariant selects which points-to analysis runs on the pointer state
// subgraph.
type PtaVariant string

const (
	// PtaFlowInsensitive is the single-memory-object-per-allocation variant.
	PtaFlowInsensitive PtaVariant = "fi"

	// PtaFlowSensitive is the per-program-point memory-map variant.
	PtaFlowSensitive PtaVariant = "fs"
)

// Config holds the options of the dependence graph construction and of the
// points-to analyses. If some field is not defined in the config file, Load
// leaves the value set by NewDefault.
type Config struct {
	sourceFile string

	// Entry is the name of the entry function of the analyzed module. When
	// empty, the builder looks for "main".
	Entry string `yaml:"entry"`

	// Pta selects the points-to variant ("fi" or "fs").
	Pta PtaVariant `yaml:"pta"`

	// LogLevel controls the verbosity of the diagnostic sink.
	LogLevel int `yaml:"log-level"`

	// DumpDot selects DOT output instead of the plain-text dump.
	DumpDot bool `yaml:"dot"`

	// Verbose additionally dumps per-node memory objects or memory maps.
	Verbose bool `yaml:"verbose"`

	// AddPostDomFrontiers controls whether control-dependence edges derived
	// from post-dominance frontiers are added after construction.
	AddPostDomFrontiers bool `yaml:"post-dom-frontiers"`
}

// NewDefault returns a config with the default values: flow-insensitive
// points-to, info-level logging, frontiers enabled.
func NewDefault() *Config {
	return &Config{
		Pta:                 PtaFlowInsensitive,
		LogLevel:            int(InfoLevel),
		AddPostDomFrontiers: true,
	}
}

// Load reads a config from the file specified. Returns an error if the file
// does not exist, cannot be parsed, or contains an invalid option.
func Load(filename string) (*Config, error) {
	cfg := NewDefault()

	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", filename, err)
	}

	cfg.sourceFile = filename
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return cfg, nil
}

// Validate checks that the enumeration-valued options carry recognized values.
func (c *Config) Validate() error {
	switch c.Pta {
	case PtaFlowInsensitive, PtaFlowSensitive, "":
	default:
		return fmt.Errorf("unknown pta variant %q (want %q or %q)",
			c.Pta, PtaFlowInsensitive, PtaFlowSensitive)
	}
	if c.LogLevel < 0 || c.LogLevel > int(TraceLevel) {
		return fmt.Errorf("log-level %d out of range", c.LogLevel)
	}
	return nil
}

// RelPath returns the path of the file the config was loaded from, or "" for
// a default config.
func (c *Config) RelPath() string {
	return c.sourceFile
}
