// SPDX-License-Identifier: GPL-3.0-or-later

// Package logship implements the concurrent pipeline runtime of a
// log-shipping agent: a long-running daemon that ingests event records
// from configurable input sources, passes them through user-declared
// transforms, and delivers them to output sinks, while surviving process
// restarts without losing or silently dropping events.
//
// # Core Abstraction
//
// The runtime is built around a small number of cooperating primitives:
//
//	type Event struct { ... }          // tagged None/Structured/Raw value
//	type Envelope struct { ... }       // event + upstream permit + ack
//	type Plugin interface { ... }      // uniform stage lifecycle
//	type Channel struct { ... }        // bounded, permit-paired pipe
//
// A [RouteConfig] names one input, zero or more transforms, and one output;
// [Assemble] wires them into an [AssembledRoute] chain; [Supervisor] spawns every route's stages and waits for either
// clean completion or a tripped [Tripwire].
//
// # Available Primitives
//
// Pipeline core:
//   - [Event], [Envelope]: the data carried between stages
//   - [Channel], [NewChannel]: the bounded, permit-paired medium between stages
//   - [Tripwire], [NewTripwire]: the process-wide cancellation token
//   - [Plugin], [Registry]: the stage contract and the name->factory table
//   - [RouteConfig], [Assemble], [Supervisor]: chain assembly and process-wide shutdown
//
// Reused network primitives (for the TCP and Unix-socket sinks):
//   - [ConnectFunc]: dials TCP or UDP endpoints
//   - [ObserveConnFunc]: observes connections for logging I/O operations
//   - [CancelWatchFunc]: closes connections on context cancellation
//
// Composition utilities:
//   - [Compose2] through [Compose8]: chain [Func] instances into pipelines
//   - [FuncAdapter]: wrap a function as a [Func] for ad-hoc behavior
//   - [Apply]: bind a fixed input to a [Func]
//   - [ConstFunc]: lift a pure value into a [Func]
//
// # Envelope Lifecycle
//
// An input plugin constructs an [Event], wraps it in an [Envelope] carrying
// a permit acquired from its downstream [Channel] and an ack callback that
// advances the input's durable position, and sends it. Every stage after
// the input forwards the same envelope (or drops it, releasing the
// permit); only the terminal output invokes the ack, and only after the
// event has been handed to the sink. This is the mechanism that gives the
// system its end-to-end at-least-once delivery guarantee: the input never
// advances its persisted offset until the output says so.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible
// with [log/slog]). By default, logging is disabled; set the Logger field
// to a real [*slog.Logger] to enable it. Error classification is
// configurable via [ErrClassifier]; by default [DefaultErrClassifier]
// uses the platform-specific errno tables in internal/errclass.
//
// Use [NewSpanID] to generate a unique, time-ordered identifier (UUIDv7)
// for each route run, then attach it to the logger with
// [*slog.Logger.With]. All log entries for that run share the same
// spanID, making a single route's lifecycle greppable out of a shared log
// stream.
//
// # Cancellation Philosophy
//
// This package is context-transparent in the same sense the network
// primitives always were: plugins never create their own top-level
// context, and a [Tripwire] never races a caller's own cancellation of
// the context it was derived from. [NewTripwire] derives both from a
// parent [context.Context]; tripping is monotonic and may be observed any
// number of times by any number of stages. Use [CancelWatchFunc] to bind
// a sink's underlying [net.Conn] lifetime to the tripwire's context so a
// blocked network write fails promptly on shutdown, exactly as it does
// for the reused network primitives.
//
// # Design Boundaries
//
// This package provides the pipeline runtime and a standard set of
// plugins. The following are out of scope and live in their own leaf
// packages or the cmd/logship daemon:
//
//   - The route configuration file format and its parser (internal/configfile)
//   - Configuration discovery order (internal/configdiscovery)
//   - CLI argument handling, logging setup, and signal plumbing (cmd/logship)
//   - The administrative query-language parser (not part of this module)
package logship
