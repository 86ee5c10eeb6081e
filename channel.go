// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelClosed is returned by [*Channel.Receive] once the producer has
// called [*Channel.Close] and every buffered envelope has been drained.
// A producer observing this error (from the upstream side) treats it as
// clean end-of-stream, never as a failure.
var ErrChannelClosed = errors.New("logship: channel closed")

// DefaultChannelSize is used when a route does not configure channel_size.
const DefaultChannelSize = 128

// MinChannelSize and MaxChannelSize bound the channel_size option.
const (
	MinChannelSize = 2
	MaxChannelSize = 1024
)

// semaphore is a counting semaphore built on the standard
// buffered-channel-as-token-bucket idiom, with an added close signal so a
// [Tripwire] trip can unblock every pending acquire at once.
type semaphore struct {
	tokens    chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	return &semaphore{
		tokens: make(chan struct{}, capacity),
		closed: make(chan struct{}),
	}
}

// acquire blocks until a token is available, ctx is done, or the
// semaphore is closed, whichever happens first.
func (s *semaphore) acquire(ctx context.Context) error {
	select {
	case s.tokens <- struct{}{}:
		return nil
	case <-s.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *semaphore) release() {
	select {
	case <-s.tokens:
	default:
		// A release without a matching acquire is a caller bug; ignore
		// rather than panic so a double-release never crashes a route.
	}
}

// close unblocks every pending and future acquire with [ErrChannelClosed].
// Safe to call more than once.
func (s *semaphore) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Permit is the capacity slot an [Envelope] carries upstream. A permit is
// released exactly once, either explicitly by the consumer that dropped
// the envelope or, for safety, when the envelope itself is released.
type Permit struct {
	sem      *semaphore
	once     sync.Once
	released bool
}

// Release returns the permit's slot to its channel. Safe to call more
// than once; only the first call has an effect, matching the envelope's
// own ack idempotency contract.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.sem.release()
		p.released = true
	})
}

// NewChannel returns a new [*Channel] of the given capacity, whose permit
// semaphore is closed automatically when tw trips. capacity is clamped to
// [MinChannelSize, MaxChannelSize].
func NewChannel(tw *Tripwire, capacity int) *Channel {
	if capacity < MinChannelSize {
		capacity = MinChannelSize
	}
	if capacity > MaxChannelSize {
		capacity = MaxChannelSize
	}
	ch := &Channel{
		pipe:     make(chan *Envelope, capacity),
		sem:      newSemaphore(capacity),
		capacity: capacity,
	}
	go func() {
		<-tw.Done()
		ch.sem.close()
	}()
	return ch
}

// Channel is the bounded, permit-paired medium between two route stages.
// It is a single-producer, single-consumer pipe: the canonical case the
// runtime assembles, since every transform and output connects exactly
// one upstream receiver.
type Channel struct {
	pipe      chan *Envelope
	sem       *semaphore
	capacity  int
	closeOnce sync.Once
}

// Capacity returns the channel's configured capacity.
func (c *Channel) Capacity() int {
	return c.capacity
}

// Send acquires a permit (suspending until one is free, ctx is done, or
// the channel's tripwire has fired) and forwards env, attaching the
// acquired permit to it as env's upstream permit. Returns [ErrChannelClosed]
// if the semaphore has been closed by a tripwire, or ctx.Err() if ctx was
// the first to signal.
func (c *Channel) Send(ctx context.Context, env *Envelope) error {
	if err := c.sem.acquire(ctx); err != nil {
		return err
	}
	permit := &Permit{sem: c.sem}
	env.permit = permit
	select {
	case c.pipe <- env:
		return nil
	case <-ctx.Done():
		permit.Release()
		return ctx.Err()
	}
}

// Receive waits for the next envelope, or returns [ErrChannelClosed] once
// the producer has closed the channel and drained what was buffered, or
// ctx.Err() if ctx is done first.
func (c *Channel) Receive(ctx context.Context) (*Envelope, error) {
	select {
	case env, ok := <-c.pipe:
		if !ok {
			return nil, ErrChannelClosed
		}
		return env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close signals end-of-stream to the consumer side. Called by the
// producing stage once its run loop returns. Safe to call more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.pipe) })
}
