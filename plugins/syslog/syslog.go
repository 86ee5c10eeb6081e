//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/syslog.rs
// Adapted from: _examples/original_source/log-ship/src/plugins/fortinet.rs
//

// Package syslog implements the syslog-message parser transform: it turns
// Raw events into Structured ones, recognizing both a standard RFC3164 /
// RFC5424 envelope and, as a fast path, a Fortinet-style body made
// entirely of bare "key=value" pairs with no RFC5424 structured-data
// keying.
package syslog

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bassosimone/logship"
	"github.com/go-logfmt/logfmt"
	"github.com/leodido/go-syslog/v4/rfc3164"
	"github.com/leodido/go-syslog/v4/rfc5424"
)

// PluginName is the name this package registers itself under.
const PluginName = "syslog"

// Register adds the syslog parser transform factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: ts_field
// (default "t"), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	tsField, err := args.StringOr("ts_field", "t")
	if err != nil {
		return nil, err
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	return &Transform{
		tsField: tsField,
		out:     logship.NewChannel(tw, channelSize),
		logger:  logger,
		tw:      tw,
	}, nil
}

// Transform implements [logship.Producer] and [logship.Consumer].
type Transform struct {
	tsField string
	in      *logship.Channel
	out     *logship.Channel
	logger  logship.SLogger
	tw      *logship.Tripwire
}

// Name implements [logship.Plugin].
func (t *Transform) Name() string { return PluginName }

// ConnectReceiver implements [logship.Consumer].
func (t *Transform) ConnectReceiver(ch *logship.Channel) { t.in = ch }

// GetReceiver implements [logship.Producer].
func (t *Transform) GetReceiver() *logship.Channel { return t.out }

// Run implements [logship.Plugin].
func (t *Transform) Run(ctx context.Context) error {
	defer t.out.Close()
	for {
		env, err := t.in.Receive(ctx)
		if err != nil {
			return nil
		}
		env.Release() // frees the upstream slot; out.Send below attaches a fresh one
		switch env.Event.Kind {
		case logship.EventNone:
			// pass through unchanged; ack stays intact for the originating stage
		case logship.EventStructured:
			t.logger.Info("syslogSkippedStructuredEvent")
		default:
			env.Event = logship.NewStructuredEvent(Parse(env.Event.Raw, t.tsField))
		}
		if err := t.out.Send(ctx, env); err != nil {
			return nil
		}
	}
}

// Parse turns a raw syslog line into a structured field map, stamping
// tsField with the message's own timestamp if one could be recovered, or
// the current wall-clock time otherwise.
func Parse(line, tsField string) map[string]any {
	fields := make(map[string]any)

	body, hasPRI := stripPRI(line)
	if !hasPRI {
		body = line
	}

	if msg, err := rfc5424.NewParser().Parse([]byte(line)); err == nil {
		return fromStandardMessage(msg, tsField)
	}
	if msg, err := rfc3164.NewParser().Parse([]byte(line)); err == nil {
		return fromStandardMessage(msg, tsField)
	}

	// Fortinet fast path: only when the body is entirely composed of bare
	// key=value tokens (no RFC5424 SD-PARAM keying) do we flatten it
	// directly; free-form text still goes under "+message" below.
	if !looksLikeKeyValueBody(body) {
		fields["+message"] = body
		fields[tsField] = time.Now().UTC().Unix()
		return fields
	}

	dec := logfmt.NewDecoder(strings.NewReader(body))
	var date, timeOfDay string
	for dec.ScanRecord() {
		for dec.ScanKeyval() {
			key, val := string(dec.Key()), string(dec.Value())
			switch key {
			case "date":
				date = val
			case "time":
				timeOfDay = val
			default:
				fields[key] = val
			}
		}
	}
	if dec.Err() != nil {
		fields["+message"] = body
		fields[tsField] = time.Now().UTC().Unix()
		return fields
	}

	if date != "" && timeOfDay != "" {
		if ts, err := time.Parse("2006-01-02 15:04:05", date+" "+timeOfDay); err == nil {
			fields[tsField] = ts.Unix()
			return fields
		}
	}
	fields[tsField] = time.Now().UTC().Unix()
	return fields
}

// keyValueBody matches a run of one or more bare "key=value" tokens
// (value either a double-quoted string or a bare run of non-space
// characters), covering the entire trimmed input.
var keyValueBody = regexp.MustCompile(`^(?:[^\s=]+=(?:"[^"]*"|\S*)\s*)+$`)

func looksLikeKeyValueBody(body string) bool {
	trimmed := strings.TrimSpace(body)
	return trimmed != "" && keyValueBody.MatchString(trimmed)
}

// stripPRI removes a leading "<NNN>" priority tag, if present.
func stripPRI(line string) (string, bool) {
	if !strings.HasPrefix(line, "<") {
		return line, false
	}
	end := strings.IndexByte(line, '>')
	if end < 0 {
		return line, false
	}
	if _, err := strconv.Atoi(line[1:end]); err != nil {
		return line, false
	}
	return line[end+1:], true
}

// standardMessage is the subset of rfc3164/rfc5424's SyslogMessage this
// package reads; both concrete types embed it via their Base struct.
type standardMessage interface {
	Timestamp() *time.Time
	Hostname() *string
	Appname() *string
	ProcID() *string
	MsgID() *string
	Message() *string
	Facility() *uint8
	Severity() *uint8
}

func fromStandardMessage(msg any, tsField string) map[string]any {
	fields := make(map[string]any)
	sm, ok := msg.(standardMessage)
	if !ok {
		fields[tsField] = time.Now().UTC().Unix()
		return fields
	}
	if ts := sm.Timestamp(); ts != nil {
		fields[tsField] = ts.UnixMilli()
	} else {
		fields[tsField] = time.Now().UTC().Unix()
	}
	if v := sm.Appname(); v != nil {
		fields["app_name"] = *v
	}
	if v := sm.Hostname(); v != nil {
		fields["hostname"] = *v
	}
	if v := sm.ProcID(); v != nil {
		fields["proc_id"] = *v
	}
	if v := sm.MsgID(); v != nil {
		fields["msg_id"] = *v
	}
	if v := sm.Facility(); v != nil {
		fields["facility"] = *v
	}
	if v := sm.Severity(); v != nil {
		fields["severity"] = *v
	}

	if v := sm.Message(); v != nil {
		dec := json.NewDecoder(bytes.NewReader([]byte(*v)))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err == nil {
			for k, val := range raw {
				fields[k] = val
			}
		} else {
			fields["+message"] = *v
		}
	}
	return fields
}
