//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/ts_injector.rs
//

// Package tsinjector implements the timestamp-injector transform: it
// stamps every Structured event with the current wall-clock time in one
// of three formats.
package tsinjector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bassosimone/logship"
)

// PluginName is the name this package registers itself under.
const PluginName = "ts_injector"

type tsType int

const (
	tsEpoch tsType = iota
	tsRFC2822
	tsRFC3339
)

// Register adds the timestamp-injector transform factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: field (default
// "t"), ts_type (one of "epoch", "rfc2822", "rfc3339", case-insensitive),
// overwrite (bool, default false), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	field, err := args.StringOr("field", "t")
	if err != nil {
		return nil, err
	}
	rawType, err := args.StringOr("ts_type", "rfc3339")
	if err != nil {
		return nil, err
	}
	var kind tsType
	switch strings.ToLower(rawType) {
	case "epoch":
		kind = tsEpoch
	case "rfc2822":
		kind = tsRFC2822
	case "rfc3339":
		kind = tsRFC3339
	default:
		return nil, fmt.Errorf("%w: ts_type must be one of epoch|rfc2822|rfc3339, got %q", logship.ErrConfiguration, rawType)
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
		kind:      kind,
		overwrite: overwrite,
		now:       time.Now,
		out:       logship.NewChannel(tw, channelSize),
		logger:    logger,
		tw:        tw,
	}, nil
}

// Transform implements [logship.Producer] and [logship.Consumer].
type Transform struct {
	field     string
	kind      tsType
	overwrite bool
	now       func() time.Time
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
				env.Event.Fields[t.field] = t.format(t.now())
			}
		}
		if err := t.out.Send(ctx, env); err != nil {
			return nil
		}
	}
}

func (t *Transform) format(now time.Time) any {
	switch t.kind {
	case tsEpoch:
		return now.Unix()
	case tsRFC2822:
		return now.Format(time.RFC1123Z)
	default:
		return now.Format(time.RFC3339)
	}
}
