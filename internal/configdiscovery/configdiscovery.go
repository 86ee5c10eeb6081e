// SPDX-License-Identifier: GPL-3.0-or-later

// Package configdiscovery implements the route configuration file
// discovery precedence: an explicit CLI-supplied path always wins;
// failing that, the daemon looks in the current working directory, then
// the user's home directory, then /etc, using the same file name at
// each stop.
package configdiscovery

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bassosimone/logship"
)

// DefaultFileName is the file name looked for at every candidate
// directory other than an explicit CLI path.
const DefaultFileName = "logship.yaml"

// Find returns the path to the route configuration file to load.
//
// If cliPath is non-empty, it is returned unchanged if it exists, or an
// error otherwise: an explicit path that doesn't exist is always a
// configuration error, never silently skipped. If cliPath is empty, the
// current working directory, $HOME, and /etc are searched in that order
// for a file named fileName; the first one found wins. If none is found,
// the search path itself is reported back in the error.
func Find(cliPath, fileName string) (string, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if cliPath != "" {
		if _, err := os.Stat(cliPath); err != nil {
			return "", fmt.Errorf("%w: configuration file %s: %v", logship.ErrResourceAcquisition, cliPath, err)
		}
		return cliPath, nil
	}

	var tried []string
	for _, dir := range searchDirs() {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, fileName)
		tried = append(tried, candidate)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no configuration file found, tried %v", logship.ErrConfiguration, tried)
}

func searchDirs() []string {
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	return []string{cwd, home, "/etc"}
}
