//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/speed.rs
//

// Package speed implements a synthetic, test-only input used to drive a
// route at a controlled rate so its backpressure and shutdown behavior
// can be exercised without a real tailer or socket.
//
// The original's speed.rs is actually the opposite role: a throughput
// *consumer* that counts acked events per second and logs a rate. That
// measurement role is of no operational use here since every route
// already supports plugging a [logship.Consumer] in its place to observe
// throughput directly. What the original's load tests needed, and what
// this repo's backpressure tests need too, is the other half it never
// had to build for itself (its load came from an external `nc`/generator
// process): a controllable high-rate *input*. This package provides that
// counterpart in the same spirit — synthetic, rate-limited, for testing
// only — and is deliberately not registered with the public factory
// registry; call [Register] from a test's own registry instead.
package speed

import (
	"context"
	"fmt"
	"time"

	"github.com/bassosimone/logship"
)

// PluginName is the name this package registers itself under when a test
// opts in via [Register].
const PluginName = "speed_test"

// Register adds the synthetic input factory to registry. Intended for
// test code only: production route configuration has no legitimate use
// for an input that fabricates events.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: count (int,
// required, total events to emit), rate_per_sec (int, default 0 meaning
// as fast as backpressure allows), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	count, err := args.Int("count", -1)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: missing option %q", logship.ErrConfiguration, "count")
	}
	ratePerSec, err := args.Int("rate_per_sec", 0)
	if err != nil {
		return nil, err
	}
	if ratePerSec < 0 {
		return nil, fmt.Errorf("%w: option %q must be >= 0", logship.ErrConfiguration, "rate_per_sec")
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	return &Input{
		count:      count,
		ratePerSec: ratePerSec,
		ch:         logship.NewChannel(tw, channelSize),
		logger:     logger,
		tw:         tw,
	}, nil
}

// Input emits count Raw events, each carrying its own index, optionally
// paced to ratePerSec. It implements [logship.Producer].
type Input struct {
	count      int
	ratePerSec int
	ch         *logship.Channel
	logger     logship.SLogger
	tw         *logship.Tripwire
}

// Name implements [logship.Plugin].
func (in *Input) Name() string { return PluginName }

// GetReceiver implements [logship.Producer].
func (in *Input) GetReceiver() *logship.Channel { return in.ch }

// Run implements [logship.Plugin].
func (in *Input) Run(ctx context.Context) error {
	defer in.ch.Close()
	var pacer *time.Ticker
	if in.ratePerSec > 0 {
		pacer = time.NewTicker(time.Second / time.Duration(in.ratePerSec))
		defer pacer.Stop()
	}
	for i := 0; i < in.count; i++ {
		if pacer != nil {
			select {
			case <-pacer.C:
			case <-in.tw.Done():
				return nil
			case <-ctx.Done():
				return nil
			}
		}
		ev := logship.NewRawEvent(fmt.Sprintf("%d", i))
		if err := in.ch.Send(ctx, logship.NewEnvelope(ev, logship.NoopAck)); err != nil {
			return nil
		}
	}
	return nil
}
