//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/field_injector.rs
//

// Package fieldinjector implements the field-injector transform: it adds
// a constant field to every Structured event, optionally overwriting an
// existing value with the same name.
package fieldinjector

import (
	"context"
	"fmt"

	"github.com/bassosimone/logship"
)

// PluginName is the name this package registers itself under.
const PluginName = "field_injector"

// Register adds the field-injector transform factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: field (string,
// required), value (scalar JSON value, required), overwrite (bool,
// default false), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	field, err := args.String("field")
	if err != nil {
		return nil, err
	}
	value, ok := args["value"]
	if !ok {
		return nil, fmt.Errorf("%w: missing option %q", logship.ErrConfiguration, "value")
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
		value:     value,
		overwrite: overwrite,
		out:       logship.NewChannel(tw, channelSize),
		logger:    logger,
		tw:        tw,
	}, nil
}

// Transform implements [logship.Producer] and [logship.Consumer].
type Transform struct {
	field     string
	value     any
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
		if env.Event.Kind == logship.EventStructured {
			if _, present := env.Event.Fields[t.field]; !present || t.overwrite {
				env.Event.Fields[t.field] = t.value
			}
		}
		if err := t.out.Send(ctx, env); err != nil {
			return nil
		}
	}
}
