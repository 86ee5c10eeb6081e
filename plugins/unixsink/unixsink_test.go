// SPDX-License-Identifier: GPL-3.0-or-later

package unixsink

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bassosimone/logship"
	"github.com/stretchr/testify/require"
)

func TestOutputWritesLinesToSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "sink.sock")
	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
	}()

	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()

	plugin, err := New(context.Background(),
		logship.Args{"path": sockPath, "channel_size": 4},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.NoError(t, err)
	o := plugin.(*Output)

	in := logship.NewChannel(tw, 4)
	o.ConnectReceiver(in)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, in.Send(ctx, logship.NewEnvelope(logship.NewRawEvent("hello"), logship.NoopAck)))

	go o.Run(ctx)

	select {
	case line := <-received:
		require.Equal(t, "hello\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}
}

func TestNewFailsOnMissingSocket(t *testing.T) {
	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	_, err := New(context.Background(),
		logship.Args{"path": filepath.Join(t.TempDir(), "missing.sock")},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.ErrorIs(t, err, logship.ErrResourceAcquisition)
}
