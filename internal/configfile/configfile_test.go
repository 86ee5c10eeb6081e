// SPDX-License-Identifier: GPL-3.0-or-later

package configfile

import (
	"testing"

	"github.com/bassosimone/logship"
	"github.com/stretchr/testify/require"
)

const sample = `
routes:
  - name: syslog-to-disk
    input:
      name: udp
      args:
        port: 514
    transforms:
      - name: syslog
    output:
      name: file_sink
      args:
        path: /var/log/ship.log
`

func TestParseValidDocument(t *testing.T) {
	routes, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, routes, 1)
	rc := routes[0]
	require.Equal(t, "syslog-to-disk", rc.Name)
	require.Equal(t, "udp", rc.Input.Name)
	require.Equal(t, 514, rc.Input.Args["port"])
	require.Len(t, rc.Transforms, 1)
	require.Equal(t, "syslog", rc.Transforms[0].Name)
	require.Equal(t, "file_sink", rc.Output.Name)
	require.Equal(t, "/var/log/ship.log", rc.Output.Args["path"])
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(`routes: []`))
	require.ErrorIs(t, err, logship.ErrConfiguration)
}

func TestParseRejectsMissingOutput(t *testing.T) {
	_, err := Parse([]byte(`
routes:
  - name: r1
    input:
      name: udp
`))
	require.ErrorIs(t, err, logship.ErrConfiguration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/route.yaml")
	require.ErrorIs(t, err, logship.ErrResourceAcquisition)
}
