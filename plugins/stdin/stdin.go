//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/stdio.rs
//

// Package stdin implements the standard-input source.
package stdin

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/bassosimone/logship"
)

// PluginName is the name this package registers itself under.
const PluginName = "stdin"

// Register adds the standard-input factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: parse_json
// (bool, default false), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	parseJSON, err := args.Bool("parse_json", false)
	if err != nil {
		return nil, err
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}
	return &Input{
		parseJSON: parseJSON,
		ch:        logship.NewChannel(tw, channelSize),
		reader:    os.Stdin,
		logger:    logger,
	}, nil
}

// Input reads newline-delimited records from standard input.
type Input struct {
	parseJSON bool
	ch        *logship.Channel
	reader    *os.File
	logger    logship.SLogger
}

// Name implements [logship.Plugin].
func (in *Input) Name() string { return PluginName }

// GetReceiver implements [logship.Producer].
func (in *Input) GetReceiver() *logship.Channel { return in.ch }

// Run implements [logship.Plugin].
func (in *Input) Run(ctx context.Context) error {
	defer in.ch.Close()
	scanner := bufio.NewScanner(in.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		ev := buildEvent(line, in.parseJSON)
		env := logship.NewEnvelope(ev, logship.NoopAck)
		if err := in.ch.Send(ctx, env); err != nil {
			return nil
		}
	}
	return nil
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
