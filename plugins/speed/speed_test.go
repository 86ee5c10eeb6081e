// SPDX-License-Identifier: GPL-3.0-or-later

package speed

import (
	"context"
	"testing"
	"time"

	"github.com/bassosimone/logship"
	"github.com/stretchr/testify/require"
)

func TestInputEmitsExactCount(t *testing.T) {
	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	plugin, err := New(context.Background(), logship.Args{"count": 5, "channel_size": 8},
		logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.NoError(t, err)
	in := plugin.(*Input)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go in.Run(ctx)

	received := 0
	for {
		env, err := in.GetReceiver().Receive(ctx)
		if err != nil {
			break
		}
		env.Release()
		received++
	}
	require.Equal(t, 5, received)
}

func TestNewRequiresCount(t *testing.T) {
	tw := logship.NewTripwire(context.Background())
	defer tw.Trip()
	_, err := New(context.Background(), logship.Args{}, logship.NewConfig(), logship.DefaultSLogger(), tw)
	require.ErrorIs(t, err, logship.ErrConfiguration)
}
