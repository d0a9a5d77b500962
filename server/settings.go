/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package server

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"
)

type HTTPConfig struct {
	Bind              string `toml:"bind"`
	LogRequestDetails bool   `toml:"logRequestDetails"`
	ViewPrefix        string `toml:"viewPrefix"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type PluginsConfig struct {
	// Enabled lists the modules to install, in enumeration order.
	Enabled []string `toml:"enabled"`

	// StrictLinks turns links to extension points no installed module
	// declares into a boot error instead of a warning.
	StrictLinks bool `toml:"strictLinks"`

	// Config holds one free-form table per module.
	Config map[string]map[string]interface{} `toml:"config"`
}

type Settings struct {
	HTTP    HTTPConfig     `toml:"http"`
	Metrics *MetricsConfig `toml:"metrics"`
	Plugins PluginsConfig  `toml:"plugins"`

	LogFile  string `toml:"logfile"`
	LogLevel string `toml:"loglevel"`
	DataDir  string `toml:"dataDir"`

	Software string
	Version  string
	BuiltAt  string
}

const (
	DefaultHTTPBind          = ":8080"
	DefaultLogRequestDetails = true
	DefaultViewPrefix        = "/views"
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "INFO"
	DefaultDataDir           = "/var/lib/plugchain"
)

var (
	Software = "plugchain"
	Version  = "~unreleased"
	BuiltAt  string
)

// DefaultPlugins is the module enumeration used when the settings name
// none.
var DefaultPlugins = []string{"catalog", "pricing", "tax", "discount", "cart", "checkout", "views"}

func DefaultSettings() Settings {
	return Settings{
		HTTP: HTTPConfig{
			Bind:              DefaultHTTPBind,
			LogRequestDetails: DefaultLogRequestDetails,
			ViewPrefix:        DefaultViewPrefix,
		},
		Metrics: &MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Plugins: PluginsConfig{
			Enabled: append([]string(nil), DefaultPlugins...),
			Config:  make(map[string]map[string]interface{}),
		},
		LogLevel: DefaultLogLevel,
		DataDir:  DefaultDataDir,
		Software: Software,
		Version:  Version,
		BuiltAt:  BuiltAt,
	}
}

func ParseSettings(data string) (*Settings, error) {
	// Configuration files may use template syntax with sprig and osenv.
	if strings.Contains(data, "{{") && strings.Contains(data, "}}") {
		tmpl, err := template.New("config").Funcs(sprig.TxtFuncMap()).Funcs(envFuncMap()).Parse(data)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		w := &bytes.Buffer{}
		err = tmpl.Execute(w, readEnv())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		data = w.String()
	}

	// Try parsing directly without wrapper first
	settings := DefaultSettings()
	md, err := toml.Decode(data, &settings)
	if err != nil || md.IsDefined("plugchain") {
		var docWithWrapper struct {
			Plugchain Settings `toml:"plugchain"`
		}
		docWithWrapper.Plugchain = DefaultSettings()
		_, err = toml.Decode(data, &docWithWrapper)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		settings = docWithWrapper.Plugchain
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}
	settings.configureDataDirPaths()
	return &settings, nil
}

func (s *Settings) validate() error {
	seen := make(map[string]bool)
	for _, name := range s.Plugins.Enabled {
		if name == "" {
			return errors.New("empty module name in plugins.enabled")
		}
		if seen[name] {
			return errors.Errorf("module %q enabled twice", name)
		}
		seen[name] = true
	}
	if s.Metrics != nil && s.Metrics.Path != "" && !strings.HasPrefix(s.Metrics.Path, "/") {
		return errors.Errorf("metrics path %q must be absolute", s.Metrics.Path)
	}
	return nil
}

// envFuncMap returns template functions for reading the environment.
func envFuncMap() template.FuncMap {
	return template.FuncMap(
		map[string]interface{}{
			"osenv": func(prefix string) map[string]string {
				env := make(map[string]string)
				for _, e := range os.Environ() {
					pair := strings.SplitN(e, "=", 2)
					if strings.HasPrefix(pair[0], prefix) {
						env[pair[0]] = pair[1]
					}
				}
				return env
			},
		},
	)
}

// readEnv returns a map of environment variables
func readEnv() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		env[pair[0]] = pair[1]
	}
	return env
}

// configureDataDirPaths makes relative module paths absolute under DataDir.
func (s *Settings) configureDataDirPaths() {
	if s.DataDir == "" {
		return
	}
	for _, cfg := range s.Plugins.Config {
		path, ok := cfg["path"].(string)
		if ok && path != "" && !filepath.IsAbs(path) {
			cfg["path"] = filepath.Join(s.DataDir, path)
		}
	}
}
