// SPDX-License-Identifier: GPL-3.0-or-later

package lumberjack

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/bassosimone/logship"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

func writeJSONEntry(buf *bytes.Buffer, seq uint32, data []byte) {
	buf.WriteByte(protocolVersion)
	buf.WriteByte(codeJSONData)
	binary.Write(buf, binary.BigEndian, seq)
	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
}

// S6: a Lumberjack frame with two JSON payloads in sequences 1 and 2
// yields two Structured events in that order.
func TestLumberjackDecodesCompressedFrame(t *testing.T) {
	var inner bytes.Buffer
	writeJSONEntry(&inner, 1, []byte(`{"n":1}`))
	writeJSONEntry(&inner, 2, []byte(`{"n":2}`))

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(inner.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var frame bytes.Buffer
	frame.WriteByte(protocolVersion)
	frame.WriteByte(codeCompressed)
	binary.Write(&frame, binary.BigEndian, uint32(compressed.Len()))
	frame.Write(compressed.Bytes())

	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	plugin, err := New(context.Background(), logship.Args{"host": "127.0.0.1", "port": 0, "channel_size": 4}, logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.NoError(t, err)
	in := plugin.(*Input)
	go in.Run(context.Background())

	conn, err := net.Dial("tcp", in.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(frame.Bytes())
	require.NoError(t, err)

	ch := in.GetReceiver()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	env1, err := ch.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), env1.Event.Fields["n"])

	env2, err := ch.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), env2.Event.Fields["n"])
}
