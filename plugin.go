// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import (
	"context"
	"fmt"
)

// Args is the validated option map passed to a plugin factory. Values
// come from the route configuration file (internal/configfile); a
// plugin's constructor is responsible for type-checking and defaulting
// every option it recognizes and rejecting everything else.
type Args map[string]any

// String returns the string option named key, or an error wrapping
// [ErrConfiguration] if it is missing or not a string.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("%w: missing option %q", ErrConfiguration, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: option %q must be a string, got %T", ErrConfiguration, key, v)
	}
	return s, nil
}

// StringOr returns the string option named key, or def if it is absent.
// Still an error if present with the wrong type.
func (a Args) StringOr(key, def string) (string, error) {
	if _, ok := a[key]; !ok {
		return def, nil
	}
	return a.String(key)
}

// Bool returns the bool option named key, defaulting to def if absent.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: option %q must be a bool, got %T", ErrConfiguration, key, v)
	}
	return b, nil
}

// Int returns the int option named key, defaulting to def if absent.
// Accepts any Go numeric type produced by a config-file decoder.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: option %q must be an integer, got %T", ErrConfiguration, key, v)
	}
}

// ChannelSize returns the validated channel_size option, defaulting to
// [DefaultChannelSize]. A value outside [MinChannelSize, MaxChannelSize]
// is an error wrapping [ErrConfiguration].
func (a Args) ChannelSize() (int, error) {
	n, err := a.Int("channel_size", DefaultChannelSize)
	if err != nil {
		return 0, err
	}
	if n < MinChannelSize || n > MaxChannelSize {
		return 0, fmt.Errorf("%w: channel_size %d out of range [%d, %d]",
			ErrConfiguration, n, MinChannelSize, MaxChannelSize)
	}
	return n, nil
}

// Plugin is the uniform lifecycle every stage implements.
//
// Input and transform stages additionally implement [Producer]; transform
// and output stages additionally implement [Consumer]. A concrete plugin
// type implements exactly the combination appropriate to its role:
// inputs implement Plugin+Producer, outputs implement Plugin+Consumer,
// transforms implement all three.
type Plugin interface {
	// Name returns the plugin's registered name.
	Name() string

	// Run is the stage's main loop. It returns when the route's
	// [Tripwire] trips or, for a transform/output, when its upstream
	// channel closes. A non-nil, non-transient error is logged by the
	// route assembler and ends the route.
	Run(ctx context.Context) error
}

// Producer is implemented by plugins that send envelopes downstream:
// inputs and transforms.
type Producer interface {
	Plugin
	GetReceiver() *Channel
}

// Consumer is implemented by plugins that receive envelopes from
// upstream: transforms and outputs.
type Consumer interface {
	Plugin
	ConnectReceiver(ch *Channel)
}

// Factory constructs a [Plugin] instance from its validated args. cfg
// carries shared dependencies (clock, error classifier, dialer); logger
// is the plugin's [SLogger]; tw is the process-wide [Tripwire] the
// plugin's run loop must observe at every suspension point.
type Factory func(ctx context.Context, args Args, cfg *Config, logger SLogger, tw *Tripwire) (Plugin, error)
