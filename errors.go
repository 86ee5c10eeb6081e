// SPDX-License-Identifier: GPL-3.0-or-later

package logship

import "errors"

// Sentinel errors for the error-kind taxonomy of spec §7. Wrap one of
// these with fmt.Errorf("%w: ...", ErrXxx, ...) from a plugin constructor
// or run loop so the route assembler and supervisor can tell, via
// errors.Is, whether a failure is fatal to the whole process, fatal only
// to one route, or merely transient and already handled internally.
var (
	// ErrConfiguration: missing/ill-typed option, unknown plugin name,
	// invalid route reference. Fatal at startup.
	ErrConfiguration = errors.New("logship: configuration error")

	// ErrResourceAcquisition: cannot open target file, bind socket, or
	// connect to a remote sink. Fatal to the affected route only.
	ErrResourceAcquisition = errors.New("logship: resource acquisition error")

	// ErrTransient: malformed line, undecodable frame, script panic.
	// Never escapes a plugin's Run; logged at Info level (SLogger has no
	// warn level) and the event is dropped with its ack still invoked.
	ErrTransient = errors.New("logship: transient error")

	// ErrStateFileCorruption: a tailer's persisted offset exceeds its
	// target file's current size. Logged at Info level (SLogger has no
	// warn level); state resets to zero.
	ErrStateFileCorruption = errors.New("logship: state file corruption")

	// ErrAckFailure: the state file (or cursor file) could not be
	// written during ack. Fatal: future durability can't be guaranteed.
	ErrAckFailure = errors.New("logship: ack failure")
)

// RouteError attaches route and option context to an underlying error, so
// a configuration error is surfaced with the offending route name (and,
// when applicable, option name) in its message, per spec §7.
type RouteError struct {
	Route  string
	Option string
	Err    error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	if e.Option != "" {
		return "route " + e.Route + ": option " + e.Option + ": " + e.Err.Error()
	}
	return "route " + e.Route + ": " + e.Err.Error()
}

// Unwrap supports errors.Is/errors.As against the wrapped sentinel.
func (e *RouteError) Unwrap() error {
	return e.Err
}
