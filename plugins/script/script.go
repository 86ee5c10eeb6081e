//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/python.rs
//

// Package script implements the embedded-scripting transform: it loads a
// Lua module once at construction and calls a configured function per
// event, converting the function's returned table back into a
// Structured event (or dropping the event if the function returns nil).
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bassosimone/logship"
	lua "github.com/yuin/gopher-lua"
)

// PluginName is the name this package registers itself under.
const PluginName = "script"

const defaultFunctionName = "process"

// Register adds the scripting transform factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: path (string,
// required), function (default "process"), arg_type ("str"|"dict",
// required), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	path, err := args.String("path")
	if err != nil {
		return nil, err
	}
	function, err := args.StringOr("function", defaultFunctionName)
	if err != nil {
		return nil, err
	}
	argType, err := args.String("arg_type")
	if err != nil {
		return nil, err
	}
	if argType != "str" && argType != "dict" {
		return nil, fmt.Errorf("%w: arg_type must be one of str|dict, got %q", logship.ErrConfiguration, argType)
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	l := lua.NewState()
	if err := l.DoFile(path); err != nil {
		l.Close()
		return nil, fmt.Errorf("%w: loading script %s: %v", logship.ErrResourceAcquisition, path, err)
	}
	fn := l.GetGlobal(function)
	if fn.Type() != lua.LTFunction {
		l.Close()
		return nil, fmt.Errorf("%w: script %s has no function named %q", logship.ErrConfiguration, path, function)
	}

	return &Transform{
		l:       l,
		fn:      fn,
		argType: argType,
		out:     logship.NewChannel(tw, channelSize),
		logger:  logger,
		tw:      tw,
	}, nil
}

// Transform implements [logship.Producer] and [logship.Consumer]. Lua
// states are not safe for concurrent use; every call runs serially on
// the single goroutine that executes Run, so one *lua.LState suffices.
type Transform struct {
	l       *lua.LState
	fn      lua.LValue
	argType string
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
	defer t.l.Close()
	for {
		env, err := t.in.Receive(ctx)
		if err != nil {
			return nil
		}
		env.Release() // frees the upstream slot; out.Send below attaches a fresh one
		if env.Event.Kind == logship.EventNone {
			if err := t.out.Send(ctx, env); err != nil {
				return nil
			}
			continue
		}

		result, err := t.invoke(env.Event)
		if err != nil {
			t.logger.Info("scriptInvokeError", "err", err)
			env.Ack() // transient per spec §7: drop the event but still ack it
			continue
		}
		if result == nil {
			continue // script returned nil: drop the event
		}

		env.Event = logship.NewStructuredEvent(result)
		if err := t.out.Send(ctx, env); err != nil {
			return nil
		}
	}
}

func (t *Transform) invoke(ev logship.Event) (map[string]any, error) {
	arg, err := t.buildArg(ev)
	if err != nil {
		return nil, err
	}
	if err := t.l.CallByParam(lua.P{Fn: t.fn, NRet: 1, Protect: true}, arg); err != nil {
		return nil, fmt.Errorf("calling script function: %w", err)
	}
	ret := t.l.Get(-1)
	t.l.Pop(1)
	if ret == lua.LNil {
		return nil, nil
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script function must return a table or nil, got %s", ret.Type())
	}
	return tableToMap(tbl), nil
}

func (t *Transform) buildArg(ev logship.Event) (lua.LValue, error) {
	switch t.argType {
	case "str":
		if ev.Kind == logship.EventStructured {
			b, err := json.Marshal(ev.Fields)
			if err != nil {
				return nil, err
			}
			return lua.LString(string(b)), nil
		}
		return lua.LString(ev.Raw), nil
	default: // "dict"
		if ev.Kind == logship.EventStructured {
			return mapToTable(t.l, ev.Fields), nil
		}
		dec := json.NewDecoder(strings.NewReader(ev.Raw))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("arg_type=dict requested but event is not valid JSON: %w", err)
		}
		return mapToTable(t.l, raw), nil
	}
}

func mapToTable(l *lua.LState, fields map[string]any) *lua.LTable {
	tbl := l.NewTable()
	for k, v := range fields {
		tbl.RawSetString(k, goToLua(v))
	}
	return tbl
}

func goToLua(v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(x)
	case bool:
		return lua.LBool(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return lua.LNumber(i)
		}
		f, _ := x.Float64()
		return lua.LNumber(f)
	default:
		return lua.LString(fmt.Sprintf("%v", x))
	}
}

func tableToMap(tbl *lua.LTable) map[string]any {
	fields := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		fields[k.String()] = luaToGo(v)
	})
	return fields
}

func luaToGo(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LString:
		return string(x)
	case lua.LNumber:
		f := float64(x)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LBool:
		return bool(x)
	case *lua.LNilType:
		return nil
	default:
		return x.String()
	}
}
