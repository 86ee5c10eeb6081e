// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PluginSpec names a plugin instance and its validated options, as found
// in one stage of a [RouteConfig].
type PluginSpec struct {
	Name string
	Args Args
}

// RouteConfig is the immutable description of one route, as produced by
// internal/configfile. Channel capacity is configured per stage, via each
// stage's own channel_size option, not at the route level.
type RouteConfig struct {
	Name       string
	Input      PluginSpec
	Transforms []PluginSpec
	Output     PluginSpec
}

// AssembledRoute is a [RouteConfig] turned into live plugin instances,
// wired together and ready to run. Build one with [Assemble].
type AssembledRoute struct {
	Name   string
	input  Producer
	trans  []Plugin // each also a Producer+Consumer, stored as Plugin for Run
	output Consumer
	logger SLogger
}

// Assemble instantiates a route's input, transforms, and output in order,
// wires each stage's receiver to the next, and returns the result without
// starting any goroutine. Call [*AssembledRoute.Run] to start it.
func Assemble(
	ctx context.Context, rc RouteConfig, registry *Registry, cfg *Config, baseLogger SLogger, tw *Tripwire,
) (*AssembledRoute, error) {
	spanID := NewSpanID()
	logger := withRouteContext(baseLogger, rc.Name, spanID)

	inputPlugin, err := registry.New(ctx, rc.Input.Name, rc.Input.Args, cfg, logger, tw)
	if err != nil {
		return nil, &RouteError{Route: rc.Name, Err: err}
	}
	input, ok := inputPlugin.(Producer)
	if !ok {
		return nil, &RouteError{Route: rc.Name, Err: fmt.Errorf("%w: plugin %q cannot be used as an input", ErrConfiguration, rc.Input.Name)}
	}

	var transforms []Plugin
	upstream := input.GetReceiver()
	for _, spec := range rc.Transforms {
		p, err := registry.New(ctx, spec.Name, spec.Args, cfg, logger, tw)
		if err != nil {
			return nil, &RouteError{Route: rc.Name, Err: err}
		}
		consumer, ok := p.(Consumer)
		if !ok {
			return nil, &RouteError{Route: rc.Name, Err: fmt.Errorf("%w: plugin %q cannot be used as a transform", ErrConfiguration, spec.Name)}
		}
		producer, ok := p.(Producer)
		if !ok {
			return nil, &RouteError{Route: rc.Name, Err: fmt.Errorf("%w: plugin %q cannot be used as a transform", ErrConfiguration, spec.Name)}
		}
		consumer.ConnectReceiver(upstream)
		upstream = producer.GetReceiver()
		transforms = append(transforms, p)
	}

	outputPlugin, err := registry.New(ctx, rc.Output.Name, rc.Output.Args, cfg, logger, tw)
	if err != nil {
		return nil, &RouteError{Route: rc.Name, Err: err}
	}
	output, ok := outputPlugin.(Consumer)
	if !ok {
		return nil, &RouteError{Route: rc.Name, Err: fmt.Errorf("%w: plugin %q cannot be used as an output", ErrConfiguration, rc.Output.Name)}
	}
	output.ConnectReceiver(upstream)

	return &AssembledRoute{
		Name:   rc.Name,
		input:  input,
		trans:  transforms,
		output: output,
		logger: logger,
	}, nil
}

// Run starts every stage's [Plugin.Run] as its own goroutine, output
// first so it is ready to receive before the input produces anything,
// and blocks until all of them return. It returns the first non-nil
// error reported by any stage.
func (r *AssembledRoute) Run(ctx context.Context) error {
	r.logger.Info("routeStart", slog.String("route", r.Name))

	stages := make([]Plugin, 0, len(r.trans)+2)
	stages = append(stages, r.output)
	stages = append(stages, r.trans...)
	stages = append(stages, r.input)

	var wg sync.WaitGroup
	errs := make([]error, len(stages))
	for i, stage := range stages {
		wg.Add(1)
		go func(i int, stage Plugin) {
			defer wg.Done()
			if err := stage.Run(ctx); err != nil {
				r.logger.Info("stageError",
					slog.String("route", r.Name),
					slog.String("plugin", stage.Name()),
					slog.Any("err", err))
				errs[i] = err
			}
		}(i, stage)
	}
	wg.Wait()

	var firstErr error
	for _, err := range errs {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.logger.Info("routeStop", slog.String("route", r.Name), slog.Any("err", firstErr))
	return firstErr
}

// withRouteContext returns an [SLogger] that attaches the route name and
// span ID to every log entry, when the underlying logger is a
// [*slog.Logger]; otherwise it returns logger unchanged (still correct,
// just without the extra fields), since [SLogger] does not itself expose
// a With method.
func withRouteContext(logger SLogger, route, spanID string) SLogger {
	sl, ok := logger.(*slog.Logger)
	if !ok {
		return logger
	}
	return sl.With(slog.String("route", route), slog.String("spanID", spanID))
}
