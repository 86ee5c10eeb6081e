// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorRunsUntilRoutesFinish(t *testing.T) {
	tw := NewTripwire(context.Background())
	registry := NewRegistry()

	input := newTestInput(tw, []string{"1", "2"})
	output := &testOutput{}
	registry.Register("test-input", func(ctx context.Context, args Args, cfg *Config, logger SLogger, tripwire *Tripwire) (Plugin, error) {
		return input, nil
	})
	registry.Register("test-output", func(ctx context.Context, args Args, cfg *Config, logger SLogger, tripwire *Tripwire) (Plugin, error) {
		return output, nil
	})

	rc := RouteConfig{Name: "r1", Input: PluginSpec{Name: "test-input"}, Output: PluginSpec{Name: "test-output"}}
	route, err := Assemble(context.Background(), rc, registry, NewConfig(), DefaultSLogger(), tw)
	require.NoError(t, err)

	sup := NewSupervisor(tw, DefaultSLogger(), route)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, sup.Run(ctx))
	assert.Equal(t, []string{"1", "2"}, output.received)
}

func TestSupervisorTripOnContextCancel(t *testing.T) {
	tw := NewTripwire(context.Background())
	sup := NewSupervisor(tw, DefaultSLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sup.Run(ctx))
	assert.True(t, tw.Tripped())
}
