// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import "sync"

// AckFunc is the single-shot callback an input attaches to every
// [Envelope] it produces. The terminal output of a route invokes it
// exactly once, after the event has been durably handed to the sink.
// Invoking an AckFunc more than once is permitted; only the effect of the
// first call is defined. Ack implementations that mutate durable state
// (e.g. the file tailer's state file) are responsible for making
// repeated invocations a no-op themselves, typically via [NewAckOnce].
type AckFunc func()

// NewAckOnce wraps fn so that only the first call has an effect,
// regardless of how many times the returned [AckFunc] is invoked. Use
// this when constructing the ack for a tailer or tailer-like input,
// whose ack mutates a state file and must not be re-applied twice with
// stale data if a downstream bug double-acks.
func NewAckOnce(fn func()) AckFunc {
	var once sync.Once
	return func() { once.Do(fn) }
}

// NoopAck is an [AckFunc] that does nothing, for events with no
// associated durable position (e.g. synthetic test input).
func NoopAck() {}

// Envelope is the unit that traverses a route's channels: an [Event], the
// upstream [Permit] that reserves its slot in the previous stage's
// channel, and the [AckFunc] that signals durable handoff back to the
// input. An Envelope is built by [NewEnvelope] and released by
// [*Envelope.Release] once a stage is done forwarding or consuming it.
type Envelope struct {
	Event  Event
	Ack    AckFunc
	permit *Permit
}

// NewEnvelope returns a new [*Envelope] wrapping ev with the given ack.
// The upstream permit is attached later, by [*Channel.Send].
func NewEnvelope(ev Event, ack AckFunc) *Envelope {
	if ack == nil {
		ack = NoopAck
	}
	return &Envelope{Event: ev, Ack: ack}
}

// Release drops the envelope's upstream permit, if any, making its slot
// available to the producer again. Every stage that receives an envelope
// and does not forward it onward (a transform that filters an event, or
// the terminal output) must call Release exactly once it is done with
// the envelope.
func (e *Envelope) Release() {
	if e == nil {
		return
	}
	e.permit.Release()
}
