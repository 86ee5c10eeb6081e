//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/file_writer.rs
// Adapted from: _examples/original_source/log-ship/common/src/double_buf_writer.rs
//

// Package filesink implements the byte-file output sink: every event is
// serialized exactly as the stdout sink would (Structured as one line of
// JSON, Raw verbatim) and appended to a file through a
// [doublebufwriter.Writer], so the route's hot path never blocks
// directly on the filesystem.
package filesink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bassosimone/logship"
	"github.com/bassosimone/logship/internal/doublebufwriter"
)

// PluginName is the name this package registers itself under.
const PluginName = "file_sink"

// Register adds the byte-file sink factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: path (string,
// required), append (bool, default true: append to an existing file
// instead of truncating it), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	path, err := args.String("path")
	if err != nil {
		return nil, err
	}
	appendMode, err := args.Bool("append", true)
	if err != nil {
		return nil, err
	}
	if _, err := args.ChannelSize(); err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", logship.ErrResourceAcquisition, path, err)
	}

	return &Output{
		f:      f,
		w:      doublebufwriter.New(f),
		logger: logger,
		tw:     tw,
	}, nil
}

// Output is the byte-file sink. It implements [logship.Consumer].
type Output struct {
	f      *os.File
	w      *doublebufwriter.Writer
	in     *logship.Channel
	logger logship.SLogger
	tw     *logship.Tripwire
}

// Name implements [logship.Plugin].
func (o *Output) Name() string { return PluginName }

// ConnectReceiver implements [logship.Consumer].
func (o *Output) ConnectReceiver(ch *logship.Channel) { o.in = ch }

// Run implements [logship.Plugin]. On return, by any path, the
// double-buffered writer is closed, which flushes and drains every
// accepted write before Run's caller observes the route as stopped.
func (o *Output) Run(ctx context.Context) error {
	defer func() {
		if err := o.w.Close(); err != nil {
			o.logger.Info("fileSinkCloseError", "err", err)
		}
		o.f.Close()
	}()
	for {
		env, err := o.in.Receive(ctx)
		if err != nil {
			return nil
		}
		werr := o.write(env.Event)
		env.Release()
		if werr != nil {
			o.logger.Info("fileSinkWriteError", "err", werr)
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
	if _, err := o.w.Write([]byte{'\n'}); err != nil {
		return err
	}
	return o.w.Flush()
}
