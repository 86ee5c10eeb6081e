//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/logfmt.rs
//

// Package kv implements the key-value (logfmt) parser transform: it
// explodes a text field containing "key=value" pairs into sibling fields
// of the same Structured event.
package kv

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bassosimone/logship"
	"github.com/go-logfmt/logfmt"
)

// PluginName is the name this package registers itself under.
const PluginName = "kv"

// Register adds the key-value parser transform factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: field (string,
// required), overwrite (bool, default false), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	field, err := args.String("field")
	if err != nil {
		return nil, err
	}
	overwrite, err := args.Bool("overwrite", false)
	if err != nil {
		return nil, err
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	return &Transform{
		field:     field,
		overwrite: overwrite,
		out:       logship.NewChannel(tw, channelSize),
		logger:    logger,
		tw:        tw,
	}, nil
}

// Transform implements [logship.Producer] and [logship.Consumer].
type Transform struct {
	field     string
	overwrite bool
	in        *logship.Channel
	out       *logship.Channel
	logger    logship.SLogger
	tw        *logship.Tripwire
}

// Name implements [logship.Plugin].
func (t *Transform) Name() string { return PluginName }

// ConnectReceiver implements [logship.Consumer].
func (t *Transform) ConnectReceiver(ch *logship.Channel) { t.in = ch }

// GetReceiver implements [logship.Producer].
func (t *Transform) GetReceiver() *logship.Channel { return t.out }

// Run implements [logship.Plugin].
func (t *Transform) Run(ctx context.Context) error {
	defer t.out.Close()
	for {
		env, err := t.in.Receive(ctx)
		if err != nil {
			return nil
		}
		env.Release() // frees the upstream slot; out.Send below attaches a fresh one
		if env.Event.Kind != logship.EventStructured {
			t.logger.Info("kvNonStructuredEvent", "kind", env.Event.Kind.String())
			if err := t.out.Send(ctx, env); err != nil {
				return nil
			}
			continue
		}
		raw, ok := env.Event.Fields[t.field].(string)
		if !ok {
			if err := t.out.Send(ctx, env); err != nil {
				return nil
			}
			continue
		}
		delete(env.Event.Fields, t.field)

		dec := logfmt.NewDecoder(bytes.NewReader([]byte(raw)))
		for dec.ScanRecord() {
			for dec.ScanKeyval() {
				key := string(dec.Key())
				value := string(dec.Value())
				if _, collides := env.Event.Fields[key]; collides && !t.overwrite {
					key = fmt.Sprintf("%s.%s", t.field, key)
				}
				env.Event.Fields[key] = value
			}
		}
		if dec.Err() != nil {
			t.logger.Info("kvParseError", "field", t.field, "err", dec.Err())
		}

		if err := t.out.Send(ctx, env); err != nil {
			return nil
		}
	}
}
