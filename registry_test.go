// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct{ name string }

func (p *fakePlugin) Name() string                    { return p.name }
func (p *fakePlugin) Run(ctx context.Context) error    { return nil }
func (p *fakePlugin) GetReceiver() *Channel            { return nil }
func (p *fakePlugin) ConnectReceiver(ch *Channel)      {}

func TestRegistryRegisterAndNew(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func(ctx context.Context, args Args, cfg *Config, logger SLogger, tw *Tripwire) (Plugin, error) {
		return &fakePlugin{name: "fake"}, nil
	})

	p, err := r.New(context.Background(), "fake", nil, NewConfig(), DefaultSLogger(), NewTripwire(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, "fake", p.Name())
}

func TestRegistryUnknownName(t *testing.T) {
	r := NewRegistry()
	_, err := r.New(context.Background(), "nope", nil, NewConfig(), DefaultSLogger(), NewTripwire(context.Background()))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register("b", nil)
	r.Register("a", nil)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}
