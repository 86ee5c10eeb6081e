//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/tcp_writer.rs
// Adapted from: connect.go, cancelwatch.go, observeconn.go (dialer/observability stack)
//

// Package tcpsink implements the TCP output sink. It dials once at
// construction, using the same [logship.ConnectFunc]/[logship.CancelWatchFunc]/
// [logship.ObserveConnFunc] stack the teacher wires for every outbound
// connection, and writes every event as one line over the resulting
// connection.
package tcpsink

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"

	"github.com/bassosimone/logship"
)

// PluginName is the name this package registers itself under.
const PluginName = "tcp_sink"

// Register adds the TCP sink factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: host (string,
// required; a literal IP or a hostname resolved via the OS resolver),
// port (int, required), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	host, err := args.String("host")
	if err != nil {
		return nil, err
	}
	port, err := args.Int("port", 0)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", logship.ErrConfiguration, port)
	}
	if _, err := args.ChannelSize(); err != nil {
		return nil, err
	}

	addr, err := resolveAddrPort(host, port)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", logship.ErrResourceAcquisition, host, err)
	}

	connect := logship.NewConnectFunc(cfg, "tcp", logger)
	conn, err := connect.Call(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", logship.ErrResourceAcquisition, addr, err)
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

// resolveAddrPort resolves host to a [netip.AddrPort], trying it as a
// literal IP address first and falling back to ordinary OS-level
// hostname resolution. This is plain `net.Dial`-style resolution, not a
// DNS-protocol client.
func resolveAddrPort(host string, port int) (netip.AddrPort, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(ip, uint16(port)), nil
	}
	ipAddr, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return netip.AddrPort{}, err
	}
	ip, ok := netip.AddrFromSlice(ipAddr.IP)
	if !ok {
		return netip.AddrPort{}, fmt.Errorf("cannot convert resolved address %s", ipAddr.IP)
	}
	return netip.AddrPortFrom(ip.Unmap(), uint16(port)), nil
}

// Output is the TCP sink. It implements [logship.Consumer].
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
			o.logger.Info("tcpSinkWriteError", "err", werr)
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
