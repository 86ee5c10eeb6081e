//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/lumberjack_decoder.rs
// Adapted from: bassosimone/nop's connect.go logging conventions
//

// Package lumberjack implements the Lumberjack-framed TCP input described
// in spec §6: window frames, zlib-compressed payload frames, and JSON
// data entries with sequence numbers.
package lumberjack

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/bassosimone/logship"
	"github.com/klauspost/compress/zlib"
)

// PluginName is the name this package registers itself under.
const PluginName = "lumberjack"

const (
	protocolVersion = '2'
	codeWindow      = 'W'
	codeCompressed  = 'C'
	codeJSONData    = 'J'
)

// Register adds the Lumberjack input factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: host, port
// (int, required), ts_field (string, default "t"), channel_size.
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
		return nil, fmt.Errorf("%w: lumberjack input requires a port option", logship.ErrConfiguration)
	}
	tsField, err := args.StringOr("ts_field", "t")
	if err != nil {
		return nil, err
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listening on %s: %v", logship.ErrResourceAcquisition, addr, err)
	}

	return &Input{
		listener: listener,
		tsField:  tsField,
		ch:       logship.NewChannel(tw, channelSize),
		logger:   logger,
		tw:       tw,
	}, nil
}

// Input accepts Lumberjack client connections and decodes their frames.
type Input struct {
	listener net.Listener
	tsField  string
	ch       *logship.Channel
	logger   logship.SLogger
	tw       *logship.Tripwire
}

// Name implements [logship.Plugin].
func (in *Input) Name() string { return PluginName }

// GetReceiver implements [logship.Producer].
func (in *Input) GetReceiver() *logship.Channel { return in.ch }

// Run implements [logship.Plugin].
func (in *Input) Run(ctx context.Context) error {
	defer in.ch.Close()
	defer in.listener.Close()

	go func() {
		<-in.tw.Done()
		in.listener.Close()
	}()

	for {
		conn, err := in.listener.Accept()
		if err != nil {
			if in.tw.Tripped() {
				return nil
			}
			in.logger.Info("lumberjackAcceptError", slog.Any("err", err))
			return nil
		}
		go in.serve(ctx, conn)
	}
}

func (in *Input) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-in.tw.Done()
		conn.Close()
	}()

	for {
		if err := in.decodeOneFrame(ctx, conn); err != nil {
			if err != io.EOF {
				in.logger.Info("lumberjackDecodeError", slog.Any("err", err))
			}
			return
		}
	}
}

func (in *Input) decodeOneFrame(ctx context.Context, r io.Reader) error {
	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}
	code := header[1]

	switch code {
	case codeWindow:
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return err
		}
		return nil

	case codeCompressed:
		var payloadLen uint32
		if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
			return err
		}
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			in.logger.Info("lumberjackInflateError", slog.Any("err", err))
			return nil // transient per spec §7: drop the frame, keep the connection
		}
		defer zr.Close()
		return in.decodeDataEntries(ctx, zr)

	case codeJSONData:
		return in.decodeJSONEntry(ctx, r)

	default:
		return fmt.Errorf("lumberjack: unknown frame code %q", code)
	}
}

func (in *Input) decodeDataEntries(ctx context.Context, r io.Reader) error {
	for {
		header := make([]byte, 2)
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if header[1] != codeJSONData {
			return fmt.Errorf("lumberjack: unexpected frame code %q inside compressed payload", header[1])
		}
		if err := in.decodeJSONEntry(ctx, r); err != nil {
			return err
		}
	}
}

func (in *Input) decodeJSONEntry(ctx context.Context, r io.Reader) error {
	var seq, dataLen uint32
	if err := binary.Read(r, binary.BigEndian, &seq); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
		return err
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		in.logger.Info("lumberjackJSONError", slog.Uint64("seq", uint64(seq)), slog.Any("err", err))
		return nil // transient: drop this entry, keep decoding the stream
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

	env := logship.NewEnvelope(logship.NewStructuredEvent(fields), logship.NoopAck)
	if err := in.ch.Send(ctx, env); err != nil {
		return io.EOF
	}
	return nil
}
