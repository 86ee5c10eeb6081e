//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/udp_socket.rs
// Adapted from: bassosimone/nop's connect.go logging conventions
//

// Package udp implements the UDP datagram source.
package udp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/bassosimone/logship"
)

// PluginName is the name this package registers itself under.
const PluginName = "udp"

// Register adds the UDP input factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: host, port
// (int), parse_json (bool), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	host, err := args.StringOr("host", "0.0.0.0")
	if err != nil {
		return nil, err
	}
	port, err := args.Int("port", -1)
	if err != nil {
		return nil, err
	}
	if port < 0 {
		return nil, fmt.Errorf("%w: udp input requires a port option", logship.ErrConfiguration)
	}
	parseJSON, err := args.Bool("parse_json", false)
	if err != nil {
		return nil, err
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listening on %s: %v", logship.ErrResourceAcquisition, addr, err)
	}

	return &Input{
		conn:      conn,
		parseJSON: parseJSON,
		ch:        logship.NewChannel(tw, channelSize),
		logger:    logger,
		tw:        tw,
	}, nil
}

// Input reads one event per UDP datagram received.
type Input struct {
	conn      net.PacketConn
	parseJSON bool
	ch        *logship.Channel
	logger    logship.SLogger
	tw        *logship.Tripwire
}

// Name implements [logship.Plugin].
func (in *Input) Name() string { return PluginName }

// GetReceiver implements [logship.Producer].
func (in *Input) GetReceiver() *logship.Channel { return in.ch }

// Run implements [logship.Plugin].
func (in *Input) Run(ctx context.Context) error {
	defer in.ch.Close()
	defer in.conn.Close()

	go func() {
		<-in.tw.Done()
		in.conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, _, err := in.conn.ReadFrom(buf)
		if err != nil {
			if in.tw.Tripped() {
				return nil
			}
			in.logger.Info("udpReadError", slog.Any("err", err))
			return nil
		}
		line := string(buf[:n])
		ev := buildEvent(line, in.parseJSON)
		env := logship.NewEnvelope(ev, logship.NoopAck)
		if err := in.ch.Send(ctx, env); err != nil {
			return nil
		}
	}
}

func buildEvent(line string, parseJSON bool) logship.Event {
	if !parseJSON {
		return logship.NewRawEvent(line)
	}
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return logship.NewRawEvent(line)
	}
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if num, ok := v.(json.Number); ok {
			if i, err := num.Int64(); err == nil {
				fields[k] = i
				continue
			}
			f, _ := num.Float64()
			fields[k] = f
			continue
		}
		fields[k] = v
	}
	return logship.NewStructuredEvent(fields)
}
