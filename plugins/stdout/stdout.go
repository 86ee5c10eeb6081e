//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/stdout.rs
//

// Package stdout implements the simplest output sink: it writes every
// event to an [io.Writer] (standard output by default) as one line,
// Structured events serialized as JSON and Raw events written verbatim,
// acking and releasing each envelope once the write succeeds.
package stdout

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bassosimone/logship"
)

// PluginName is the name this package registers itself under.
const PluginName = "stdout"

// Register adds the stdout sink factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: channel_size.
// The destination writer is always [os.Stdout]; tests construct an
// [Output] directly to redirect it.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	if _, err := args.ChannelSize(); err != nil {
		return nil, err
	}
	return &Output{w: bufio.NewWriter(os.Stdout), logger: logger, tw: tw}, nil
}

// Output is the stdout sink. It implements [logship.Consumer].
type Output struct {
	w      *bufio.Writer
	in     *logship.Channel
	logger logship.SLogger
	tw     *logship.Tripwire
}

// Name implements [logship.Plugin].
func (o *Output) Name() string { return PluginName }

// ConnectReceiver implements [logship.Consumer].
func (o *Output) ConnectReceiver(ch *logship.Channel) { o.in = ch }

// Run implements [logship.Plugin]. A write error ends the route, per
// spec §7: an output failure is not locally recoverable.
func (o *Output) Run(ctx context.Context) error {
	defer o.w.Flush()
	for {
		env, err := o.in.Receive(ctx)
		if err != nil {
			return nil
		}
		werr := o.write(env.Event)
		env.Release()
		if werr != nil {
			o.logger.Info("stdoutWriteError", "err", werr)
			return fmt.Errorf("%w: %v", logship.ErrTransient, werr)
		}
		env.Ack()
	}
}

func (o *Output) write(ev logship.Event) error {
	switch ev.Kind {
	case logship.EventNone:
		return nil
	case logship.EventStructured:
		line, err := json.Marshal(ev.Fields)
		if err != nil {
			return err
		}
		if _, err := o.w.Write(line); err != nil {
			return err
		}
	default: // EventRaw
		if _, err := io.WriteString(o.w, ev.Raw); err != nil {
			return err
		}
	}
	if err := o.w.WriteByte('\n'); err != nil {
		return err
	}
	return o.w.Flush()
}
