// SPDX-License-Identifier: GPL-3.0-or-later

package tcpsink

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/bassosimone/logship"
	"github.com/stretchr/testify/require"
)

func TestOutputWritesLinesToListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
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

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()

	plugin, err := New(context.Background(),
		logship.Args{"host": host, "port": port, "channel_size": 4},
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

func TestNewRejectsInvalidPort(t *testing.T) {
	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	_, err := New(context.Background(),
		logship.Args{"host": "127.0.0.1", "port": 70000},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.ErrorIs(t, err, logship.ErrConfiguration)
}

func TestNewFailsOnConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	ln.Close() // nothing listening anymore

	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	_, err = New(context.Background(),
		logship.Args{"host": host, "port": port},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.ErrorIs(t, err, logship.ErrResourceAcquisition)
}
