//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/file.rs
// Adapted from: _examples/other_examples (DataDog-datadog-agent file tailer;
// ysaquib-sf-processor filestream rotation detection)
//

// Package file implements the durable, at-least-once file-tailer input.
//
// Unlike the Rust original, which drives its rotation state machine off
// raw inotify MOVED_FROM/MOVED_TO events paired by kernel cookie, this
// implementation watches via [github.com/fsnotify/fsnotify], whose
// cross-platform event model reports a rename as two independent,
// uncorrelated events: an [fsnotify.Rename] at the old name, and (once
// the path is recreated) an [fsnotify.Create] at that same name. Cookie
// pairing is therefore replaced by a per-instance state machine keyed on
// the watched path itself: a Rename observed on the target path begins
// draining, and the next Create observed on that same path completes the
// rotation. Since every instance ignores events for any name other than
// its own target path (it watches the parent directory), this
// preserves the spec's requirement that concurrent, unrelated renames
// elsewhere in the directory never perturb a tailer's own state.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bassosimone/logship"
	"github.com/fsnotify/fsnotify"
)

// PluginName is the name this package registers itself under.
const PluginName = "file"

// Register adds the file-tailer input factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory] for the file-tailer input. Recognised
// options: path (string, glob-capable, required), state_file_dir (string,
// optional), from_beginning (bool, default false), parse_json (bool,
// default false), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	pattern, err := args.String("path")
	if err != nil {
		return nil, err
	}
	stateFileDir, err := args.StringOr("state_file_dir", "")
	if err != nil {
		return nil, err
	}
	fromBeginning, err := args.Bool("from_beginning", false)
	if err != nil {
		return nil, err
	}
	parseJSON, err := args.Bool("parse_json", false)
	if err != nil {
		return nil, err
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid glob %q: %v", logship.ErrConfiguration, pattern, err)
	}
	if len(paths) == 0 {
		paths = []string{pattern}
	}

	ch := logship.NewChannel(tw, channelSize)
	in := &Input{ch: ch}
	for _, p := range paths {
		inst, err := newTailer(p, stateFileDir, fromBeginning, parseJSON, cfg, logger, tw, ch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", logship.ErrResourceAcquisition, err)
		}
		in.instances = append(in.instances, inst)
	}
	return in, nil
}

// Input is the file-tailer input plugin. When path is a glob matching N
// files, it runs N independent tailer instances that all feed the same
// downstream channel; per spec, interleaving between them is
// unconstrained but each is individually durable.
type Input struct {
	ch        *logship.Channel
	instances []*tailer
}

// Name implements [logship.Plugin].
func (in *Input) Name() string { return PluginName }

// GetReceiver implements [logship.Producer].
func (in *Input) GetReceiver() *logship.Channel { return in.ch }

// Run implements [logship.Plugin]. It starts every tailer instance and
// waits for all of them to return.
func (in *Input) Run(ctx context.Context) error {
	defer in.ch.Close()
	var wg sync.WaitGroup
	errs := make([]error, len(in.instances))
	for i, inst := range in.instances {
		wg.Add(1)
		go func(i int, inst *tailer) {
			defer wg.Done()
			errs[i] = inst.run(ctx)
		}(i, inst)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// tailerState is the per-tailer state machine of spec §4.4.
type tailerState int

const (
	stateNoFile tailerState = iota
	stateOpen
	stateDraining
)

// tailer durably tails one file: path, dir, base, state file, and the
// in-memory view of the byte offset up to which downstream has acked.
type tailer struct {
	path      string
	dir       string
	base      string
	statePath string

	parseJSON bool
	cfg       *logship.Config
	logger    logship.SLogger
	tw        *logship.Tripwire
	ch        *logship.Channel

	offset  int64
	file    *os.File
	pending []byte // bytes read past the last completed line
	state   tailerState
}

func newTailer(
	path, stateFileDir string, fromBeginning, parseJSON bool,
	cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire, ch *logship.Channel,
) (*tailer, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if stateFileDir == "" {
		stateFileDir = dir
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("parent directory %s does not exist", dir)
	}

	t := &tailer{
		path:      path,
		dir:       dir,
		base:      base,
		statePath: filepath.Join(stateFileDir, base+".state"),
		parseJSON: parseJSON,
		cfg:       cfg,
		logger:    logger,
		tw:        tw,
		ch:        ch,
		state:     stateNoFile,
	}

	offset, err := t.determineOffset(fromBeginning)
	if err != nil {
		return nil, err
	}
	t.offset = offset

	if f, err := os.Open(path); err == nil {
		t.file = f
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
		t.state = stateOpen
	}

	return t, nil
}

// determineOffset implements spec §4.4's four-case offset rule.
func (t *tailer) determineOffset(fromBeginning bool) (int64, error) {
	if fromBeginning {
		return 0, t.writeStateFile(0)
	}
	if data, err := os.ReadFile(t.statePath); err == nil {
		offset, perr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if perr != nil {
			return 0, fmt.Errorf("%w: state file %s: %v", logship.ErrStateFileCorruption, t.statePath, perr)
		}
		if fi, serr := os.Stat(t.path); serr == nil && offset > fi.Size() {
			t.logger.Info("stateFileCorruption",
				slog.String("path", t.path), slog.Int64("offset", offset), slog.Int64("size", fi.Size()))
			return 0, t.writeStateFile(0)
		}
		return offset, nil
	}
	if fi, err := os.Stat(t.path); err == nil {
		return fi.Size(), t.writeStateFile(fi.Size())
	}
	return 0, t.writeStateFile(0)
}

func (t *tailer) writeStateFile(offset int64) error {
	return os.WriteFile(t.statePath, []byte(strconv.FormatInt(offset, 10)), 0o644)
}

// run is the tailer's main loop.
func (t *tailer) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", logship.ErrResourceAcquisition, err)
	}
	defer watcher.Close()
	if err := watcher.Add(t.dir); err != nil {
		return fmt.Errorf("%w: watching %s: %v", logship.ErrResourceAcquisition, t.dir, err)
	}

	// Read any backlog already on disk before blocking on the watcher.
	if t.file != nil {
		if fi, err := t.file.Stat(); err == nil && fi.Size() > t.offset {
			if err := t.readCycle(ctx, false); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-t.tw.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Join(t.dir, t.base) {
				continue
			}
			if err := t.handleEvent(ctx, ev); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Info("watcherError", slog.String("path", t.path), slog.Any("err", err))
		}
	}
}

func (t *tailer) handleEvent(ctx context.Context, ev fsnotify.Event) error {
	switch {
	case ev.Op&fsnotify.Write != 0:
		if t.file == nil {
			return nil
		}
		return t.readCycle(ctx, false)

	case ev.Op&fsnotify.Rename != 0:
		if t.file == nil {
			return nil
		}
		if err := t.readCycle(ctx, true); err != nil {
			return err
		}
		t.file.Close()
		t.file = nil
		t.state = stateDraining
		return nil

	case ev.Op&fsnotify.Create != 0:
		wasDraining := t.state == stateDraining
		f, err := os.Open(t.path)
		if err != nil {
			return nil // recreated-and-already-gone; next event will sort it out
		}
		t.file = f
		if wasDraining {
			t.offset = 0
			t.state = stateNoFile
			ack := logship.NewAckOnce(func() {
				if err := t.writeStateFile(0); err != nil {
					t.logger.Info("ackFailure", slog.String("path", t.statePath), slog.Any("err", err))
				}
			})
			env := logship.NewEnvelope(logship.NewNoneEvent(), ack)
			if err := t.ch.Send(ctx, env); err != nil {
				return nil
			}
		}
		t.state = stateOpen
		return t.readCycle(ctx, false)

	default:
		return nil
	}
}

// readCycle reads complete lines from t.file starting at t.offset,
// emitting one envelope per line, per spec §4.4. When toEnd is true
// (draining before rotation) any trailing unterminated bytes are
// flushed as a final line instead of held back for the next cycle.
func (t *tailer) readCycle(ctx context.Context, toEnd bool) error {
	buf := make([]byte, 64*1024)
	for {
		n, err := t.file.Read(buf)
		if n > 0 {
			t.pending = append(t.pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(t.pending, '\n')
				if idx < 0 {
					break
				}
				line := string(t.pending[:idx])
				consumed := idx + 1
				t.pending = t.pending[consumed:]
				t.offset += int64(consumed)
				if err := t.emit(ctx, line, t.offset); err != nil {
					return err
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if toEnd && len(t.pending) > 0 {
					line := string(t.pending)
					t.offset += int64(len(t.pending))
					t.pending = nil
					return t.emit(ctx, line, t.offset)
				}
				return nil
			}
			return fmt.Errorf("%w: reading %s: %v", logship.ErrResourceAcquisition, t.path, err)
		}
		if n == 0 {
			return nil
		}
	}
}

func (t *tailer) emit(ctx context.Context, line string, offsetAfter int64) error {
	ack := logship.NewAckOnce(func() {
		if err := t.writeStateFile(offsetAfter); err != nil {
			t.logger.Info("ackFailure", slog.String("path", t.statePath), slog.Any("err", err))
		}
	})

	if !t.parseJSON {
		env := logship.NewEnvelope(logship.NewRawEvent(line), ack)
		return sendOrTrip(ctx, t.ch, env, t.tw)
	}

	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		// Transient per spec §7: drop the line, but still advance past it.
		ack()
		return nil
	}
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[k] = normalizeJSONValue(v)
	}
	env := logship.NewEnvelope(logship.NewStructuredEvent(fields), ack)
	return sendOrTrip(ctx, t.ch, env, t.tw)
}

func normalizeJSONValue(v any) any {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	f, _ := num.Float64()
	return f
}

func sendOrTrip(ctx context.Context, ch *logship.Channel, env *logship.Envelope, tw *logship.Tripwire) error {
	if err := ch.Send(ctx, env); err != nil {
		if errors.Is(err, logship.ErrChannelClosed) || tw.Tripped() {
			return nil
		}
		return err
	}
	return nil
}
