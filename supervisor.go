// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import (
	"context"
	"log/slog"
	"sync"
)

// NewSupervisor returns a [*Supervisor] for the given assembled routes,
// sharing tw as their common cancellation token.
func NewSupervisor(tw *Tripwire, logger SLogger, routes ...*AssembledRoute) *Supervisor {
	return &Supervisor{tw: tw, logger: logger, routes: routes}
}

// Supervisor runs every assembled route to completion, waiting for
// either all routes to finish on their own or the tripwire to fire, and
// in the latter case still waiting for every route to quiesce before
// returning. It implements the "per-route semaphore of size equal to the
// number of routes" from spec §4.3 as a plain [sync.WaitGroup]: each
// route holds one slot for its lifetime and the supervisor returns only
// once every slot is released.
type Supervisor struct {
	tw     *Tripwire
	logger SLogger
	routes []*AssembledRoute
}

// Run starts all routes and blocks until they have all returned. If ctx
// is cancelled (e.g. by a terminating signal bound to ctx), the
// supervisor trips its tripwire and continues waiting for every route to
// wind down before returning. The returned error is the first non-nil
// error reported by any route.
func (s *Supervisor) Run(ctx context.Context) error {
	routeCtx := s.tw.Context()

	done := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, len(s.routes))
	for i, route := range s.routes {
		wg.Add(1)
		go func(i int, route *AssembledRoute) {
			defer wg.Done()
			errs[i] = route.Run(routeCtx)
		}(i, route)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// All routes finished on their own (e.g. every input hit EOF).
		if ctx.Err() != nil {
			s.tw.Trip()
		}
	case <-ctx.Done():
		s.logger.Info("supervisorTrip", slog.Any("reason", ctx.Err()))
		s.tw.Trip()
		<-done
	}

	var firstErr error
	for _, err := range errs {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Trip trips the supervisor's tripwire directly, without waiting for a
// context to be cancelled. Used by a signal handler that wants to
// initiate shutdown immediately.
func (s *Supervisor) Trip() {
	s.tw.Trip()
}
