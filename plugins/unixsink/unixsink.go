//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/uds_writer.rs
// Adapted from: cancelwatch.go, observeconn.go (dialer/observability stack)
//

// Package unixsink implements the local-socket output sink. Unlike
// [plugins/tcpsink], it cannot use [logship.ConnectFunc] — that helper is
// restricted to "tcp"/"udp" — so it dials the Unix socket directly with
// [net.Dial], then wraps the result with the same
// [logship.CancelWatchFunc]/[logship.ObserveConnFunc] pair for
// consistency with every other outbound connection in the pipeline, since
// both wrappers are network-agnostic.
package unixsink

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/bassosimone/logship"
)

// PluginName is the name this package registers itself under.
const PluginName = "unix_sink"

// Register adds the Unix-socket sink factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: path (string,
// required), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	path, err := args.String("path")
	if err != nil {
		return nil, err
	}
	if _, err := args.ChannelSize(); err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", logship.ErrResourceAcquisition, path, err)
	}
	conn, err = (&logship.CancelWatchFunc{}).Call(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", logship.ErrResourceAcquisition, err)
	}
	conn, err = logship.NewObserveConnFunc(cfg, logger).Call(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", logship.ErrResourceAcquisition, err)
	}

	return &Output{conn: conn, logger: logger, tw: tw}, nil
}

// Output is the Unix-socket sink. It implements [logship.Consumer].
type Output struct {
	conn   net.Conn
	in     *logship.Channel
	logger logship.SLogger
	tw     *logship.Tripwire
}

// Name implements [logship.Plugin].
func (o *Output) Name() string { return PluginName }

// ConnectReceiver implements [logship.Consumer].
func (o *Output) ConnectReceiver(ch *logship.Channel) { o.in = ch }

// Run implements [logship.Plugin].
func (o *Output) Run(ctx context.Context) error {
	defer o.conn.Close()
	for {
		env, err := o.in.Receive(ctx)
		if err != nil {
			return nil
		}
		werr := o.write(env.Event)
		env.Release()
		if werr != nil {
			o.logger.Info("unixSinkWriteError", "err", werr)
			return fmt.Errorf("%w: %v", logship.ErrTransient, werr)
		}
		env.Ack()
	}
}

func (o *Output) write(ev logship.Event) error {
	var line []byte
	switch ev.Kind {
	case logship.EventNone:
		return nil
	case logship.EventStructured:
		b, err := json.Marshal(ev.Fields)
		if err != nil {
			return err
		}
		line = append(b, '\n')
	default:
		line = append([]byte(ev.Raw), '\n')
	}
	_, err := o.conn.Write(line)
	return err
}
