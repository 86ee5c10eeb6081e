// SPDX-License-Identifier: GPL-3.0-or-later

package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bassosimone/logship"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lua")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScriptTransformDictInDictOut(t *testing.T) {
	path := writeScript(t, `
function process(record)
	record.greeting = "hi " .. record.name
	return record
end
`)
	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	plugin, err := New(context.Background(),
		logship.Args{"path": path, "arg_type": "dict", "channel_size": 4},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.NoError(t, err)
	tr := plugin.(*Transform)

	in := logship.NewChannel(tw, 4)
	tr.ConnectReceiver(in)
	go tr.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, in.Send(ctx, logship.NewEnvelope(
		logship.NewStructuredEvent(map[string]any{"name": "bob"}), logship.NoopAck)))

	out, err := tr.GetReceiver().Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, "hi bob", out.Event.Fields["greeting"])
}

func TestScriptTransformDropsOnNilReturn(t *testing.T) {
	path := writeScript(t, `
function process(record)
	return nil
end
`)
	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	plugin, err := New(context.Background(),
		logship.Args{"path": path, "arg_type": "dict", "channel_size": 4},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.NoError(t, err)
	tr := plugin.(*Transform)

	in := logship.NewChannel(tw, 4)
	tr.ConnectReceiver(in)
	go tr.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, in.Send(ctx, logship.NewEnvelope(
		logship.NewStructuredEvent(map[string]any{"name": "bob"}), logship.NoopAck)))

	_, err = tr.GetReceiver().Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// A None boundary event (e.g. a file tailer's rotation marker) must reach
// the output unchanged, without ever being passed to the script, so its
// ack still fires there.
func TestScriptTransformPassesThroughNoneEvent(t *testing.T) {
	path := writeScript(t, `
function process(record)
	error("should never be called for a None event")
end
`)
	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	plugin, err := New(context.Background(),
		logship.Args{"path": path, "arg_type": "dict", "channel_size": 4},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.NoError(t, err)
	tr := plugin.(*Transform)

	in := logship.NewChannel(tw, 4)
	tr.ConnectReceiver(in)
	go tr.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, in.Send(ctx, logship.NewEnvelope(logship.NewNoneEvent(), logship.NoopAck)))

	out, err := tr.GetReceiver().Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, logship.EventNone, out.Event.Kind)
}

func TestNewRejectsUnknownArgType(t *testing.T) {
	path := writeScript(t, `function process(r) return r end`)
	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	_, err := New(context.Background(),
		logship.Args{"path": path, "arg_type": "bogus"},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.ErrorIs(t, err, logship.ErrConfiguration)
}
