// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAckOnceCallsOnlyFirstTime(t *testing.T) {
	count := 0
	ack := NewAckOnce(func() { count++ })

	ack()
	ack()
	ack()

	assert.Equal(t, 1, count)
}

func TestEnvelopeReleaseNilPermitIsSafe(t *testing.T) {
	env := NewEnvelope(NewNoneEvent(), NoopAck)
	assert.NotPanics(t, func() { env.Release() })
	assert.NotPanics(t, func() { env.Release() })
}

func TestNewEnvelopeDefaultsAck(t *testing.T) {
	env := NewEnvelope(NewRawEvent("x"), nil)
	assert.NotNil(t, env.Ack)
	assert.NotPanics(t, func() { env.Ack() })
}
