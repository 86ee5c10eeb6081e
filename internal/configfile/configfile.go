// SPDX-License-Identifier: GPL-3.0-or-later

// Package configfile loads a route configuration file into
// [logship.RouteConfig] values. It performs no plugin-specific
// validation — each plugin's own constructor is responsible for
// validating the options relevant to it.
package configfile

import (
	"fmt"
	"os"

	"github.com/bassosimone/logship"
	"gopkg.in/yaml.v3"
)

// document is the top-level shape of a route configuration file:
//
//	routes:
//	  - name: syslog-to-disk
//	    input:
//	      name: udp
//	      args: {port: 514}
//	    transforms:
//	      - name: syslog
//	    output:
//	      name: file_sink
//	      args: {path: /var/log/ship.log}
type document struct {
	Routes []route `yaml:"routes"`
}

type route struct {
	Name       string       `yaml:"name"`
	Input      pluginSpec   `yaml:"input"`
	Transforms []pluginSpec `yaml:"transforms"`
	Output     pluginSpec   `yaml:"output"`
}

type pluginSpec struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args"`
}

// Load reads and parses the route configuration file at path.
func Load(path string) ([]logship.RouteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", logship.ErrResourceAcquisition, path, err)
	}
	return Parse(data)
}

// Parse parses route configuration YAML already read into memory.
func Parse(data []byte) ([]logship.RouteConfig, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing route configuration: %v", logship.ErrConfiguration, err)
	}
	if len(doc.Routes) == 0 {
		return nil, fmt.Errorf("%w: route configuration has no routes", logship.ErrConfiguration)
	}

	routes := make([]logship.RouteConfig, 0, len(doc.Routes))
	for _, r := range doc.Routes {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: route has no name", logship.ErrConfiguration)
		}
		if r.Input.Name == "" {
			return nil, fmt.Errorf("%w: route %q has no input", logship.ErrConfiguration, r.Name)
		}
		if r.Output.Name == "" {
			return nil, fmt.Errorf("%w: route %q has no output", logship.ErrConfiguration, r.Name)
		}
		rc := logship.RouteConfig{
			Name:   r.Name,
			Input:  logship.PluginSpec{Name: r.Input.Name, Args: logship.Args(r.Input.Args)},
			Output: logship.PluginSpec{Name: r.Output.Name, Args: logship.Args(r.Output.Args)},
		}
		for _, t := range r.Transforms {
			if t.Name == "" {
				return nil, fmt.Errorf("%w: route %q has an unnamed transform", logship.ErrConfiguration, r.Name)
			}
			rc.Transforms = append(rc.Transforms, logship.PluginSpec{Name: t.Name, Args: logship.Args(t.Args)})
		}
		routes = append(routes, rc)
	}
	return routes, nil
}
