//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/main.rs
//

// Command logship runs a log-shipping daemon: it discovers and loads a
// route configuration file, assembles every route against the full
// built-in plugin registry, and runs them all until a termination signal
// trips the process-wide tripwire.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bassosimone/logship"
	"github.com/bassosimone/logship/internal/configdiscovery"
	"github.com/bassosimone/logship/internal/configfile"
	"github.com/bassosimone/logship/plugins/file"
	"github.com/bassosimone/logship/plugins/fieldinjector"
	"github.com/bassosimone/logship/plugins/filesink"
	"github.com/bassosimone/logship/plugins/journal"
	"github.com/bassosimone/logship/plugins/kv"
	"github.com/bassosimone/logship/plugins/lumberjack"
	"github.com/bassosimone/logship/plugins/metrics"
	"github.com/bassosimone/logship/plugins/script"
	"github.com/bassosimone/logship/plugins/stdin"
	"github.com/bassosimone/logship/plugins/stdout"
	"github.com/bassosimone/logship/plugins/syslog"
	"github.com/bassosimone/logship/plugins/tcpsink"
	"github.com/bassosimone/logship/plugins/tsinjector"
	"github.com/bassosimone/logship/plugins/udp"
	"github.com/bassosimone/logship/plugins/unixsink"
)

func newRegistry() *logship.Registry {
	registry := logship.NewRegistry()
	file.Register(registry)
	stdin.Register(registry)
	udp.Register(registry)
	lumberjack.Register(registry)
	journal.Register(registry)
	fieldinjector.Register(registry)
	tsinjector.Register(registry)
	kv.Register(registry)
	syslog.Register(registry)
	script.Register(registry)
	stdout.Register(registry)
	filesink.Register(registry)
	tcpsink.Register(registry)
	unixsink.Register(registry)
	metrics.Register(registry)
	return registry
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("logship", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the route configuration file")
	verbose := fs.Bool("verbose", false, "enable debug-level logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	path, err := configdiscovery.Find(*configPath, "")
	if err != nil {
		logger.Error("configDiscoveryFailed", "err", err)
		return 1
	}

	routeConfigs, err := configfile.Load(path)
	if err != nil {
		logger.Error("configLoadFailed", "path", path, "err", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tw := logship.NewTripwire(ctx)
	defer tw.Trip()
	registry := newRegistry()
	cfg := logship.NewConfig()

	var routes []*logship.AssembledRoute
	for _, rc := range routeConfigs {
		route, err := logship.Assemble(ctx, rc, registry, cfg, logger, tw)
		if err != nil {
			logger.Error("routeAssembleFailed", "route", rc.Name, "err", err)
			return 1
		}
		routes = append(routes, route)
		logger.Info("routeAssembled", "route", rc.Name)
	}

	supervisor := logship.NewSupervisor(tw, logger, routes...)
	if err := supervisor.Run(ctx); err != nil {
		logger.Error("supervisorExit", "err", err)
		return 1
	}
	return 0
}
