//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/metrics.rs
//

// Package metrics implements the host-metrics input: a configurable
// subset of cpu/memory/disk/net pollers, each running on its own
// interval and feeding the same downstream channel. The cpu, disk and
// net pollers take two snapshots a second apart and emit the delta (one
// event for cpu, one per device for disk, one per interface for net);
// the memory poller emits one event from a single snapshot.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/bassosimone/logship"
	"github.com/prometheus/procfs"
)

// PluginName is the name this package registers itself under.
const PluginName = "metrics"

// Register adds the metrics input factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

var allMetrics = map[string]bool{"cpu": true, "memory": true, "disk": true, "net": true}

// New implements [logship.Factory]. Recognised options: metrics (string
// or list of string, default all four), cpu_poll_secs, mem_poll_secs,
// disk_poll_secs, net_poll_secs (each an integer in [5, 3600], default
// 5/5/30/5 matching the original), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	selected, err := parseMetricsOption(args)
	if err != nil {
		return nil, err
	}
	cpuInterval, err := pollInterval(args, "cpu_poll_secs", 5)
	if err != nil {
		return nil, err
	}
	memInterval, err := pollInterval(args, "mem_poll_secs", 5)
	if err != nil {
		return nil, err
	}
	diskInterval, err := pollInterval(args, "disk_poll_secs", 30)
	if err != nil {
		return nil, err
	}
	netInterval, err := pollInterval(args, "net_poll_secs", 5)
	if err != nil {
		return nil, err
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("%w: opening procfs: %v", logship.ErrResourceAcquisition, err)
	}

	return &Input{
		fs:           fs,
		selected:     selected,
		cpuInterval:  cpuInterval,
		memInterval:  memInterval,
		diskInterval: diskInterval,
		netInterval:  netInterval,
		ch:           logship.NewChannel(tw, channelSize),
		logger:       logger,
		tw:           tw,
	}, nil
}

func parseMetricsOption(args logship.Args) (map[string]bool, error) {
	v, ok := args["metrics"]
	if !ok {
		out := make(map[string]bool, len(allMetrics))
		for k := range allMetrics {
			out[k] = true
		}
		return out, nil
	}
	names, err := toStringList(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		if !allMetrics[n] {
			return nil, fmt.Errorf("%w: unknown metric %q, available: cpu, memory, disk, net", logship.ErrConfiguration, n)
		}
		out[n] = true
	}
	return out, nil
}

func toStringList(v any) ([]string, error) {
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: option %q must contain only strings", logship.ErrConfiguration, "metrics")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: option %q must be a string or list of strings, got %T",
			logship.ErrConfiguration, "metrics", v)
	}
}

func pollInterval(args logship.Args, key string, def int) (time.Duration, error) {
	n, err := args.Int(key, def)
	if err != nil {
		return 0, err
	}
	if n < 5 || n > 3600 {
		return 0, fmt.Errorf("%w: %s %d out of range [5, 3600]", logship.ErrConfiguration, key, n)
	}
	return time.Duration(n) * time.Second, nil
}

// Input is the metrics poller input. It implements [logship.Producer].
type Input struct {
	fs           procfs.FS
	selected     map[string]bool
	cpuInterval  time.Duration
	memInterval  time.Duration
	diskInterval time.Duration
	netInterval  time.Duration
	ch           *logship.Channel
	logger       logship.SLogger
	tw           *logship.Tripwire
}

// Name implements [logship.Plugin].
func (in *Input) Name() string { return PluginName }

// GetReceiver implements [logship.Producer].
func (in *Input) GetReceiver() *logship.Channel { return in.ch }

// Run implements [logship.Plugin]. Every selected poller runs on its own
// goroutine; Run returns once the tripwire fires and all pollers have
// unwound.
func (in *Input) Run(ctx context.Context) error {
	defer in.ch.Close()
	type pollerFunc func(context.Context) error
	var pollers []pollerFunc
	if in.selected["cpu"] {
		pollers = append(pollers, in.pollCPU)
	}
	if in.selected["memory"] {
		pollers = append(pollers, in.pollMemory)
	}
	if in.selected["disk"] {
		pollers = append(pollers, in.pollDisk)
	}
	if in.selected["net"] {
		pollers = append(pollers, in.pollNet)
	}

	errs := make(chan error, len(pollers))
	for _, p := range pollers {
		go func(p pollerFunc) { errs <- p(ctx) }(p)
	}
	var firstErr error
	for range pollers {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sleepOrTrip waits for d, returning early (with true) if ctx is done or
// the tripwire fires first.
func (in *Input) sleepOrTrip(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-in.tw.Done():
		return true
	case <-ctx.Done():
		return true
	}
}

func (in *Input) emit(ctx context.Context, fields map[string]any) error {
	env := logship.NewEnvelope(logship.NewStructuredEvent(fields), logship.NoopAck)
	return in.ch.Send(ctx, env)
}

func (in *Input) pollCPU(ctx context.Context) error {
	for {
		t0 := time.Now()
		stat1, err := in.fs.Stat()
		if err != nil {
			in.logger.Info("metricsCPUError", "err", err)
			if in.sleepOrTrip(ctx, time.Second) {
				return nil
			}
			continue
		}
		if in.sleepOrTrip(ctx, time.Second) {
			return nil
		}
		stat2, err := in.fs.Stat()
		if err != nil {
			in.logger.Info("metricsCPUError", "err", err)
			continue
		}

		fields := map[string]any{}
		for id, cpu2 := range stat2.CPU {
			cpu1, ok := stat1.CPU[id]
			if !ok {
				continue
			}
			fields[fmt.Sprintf("cpu%d.system", id)] = cpu2.System - cpu1.System
			fields[fmt.Sprintf("cpu%d.user", id)] = cpu2.User - cpu1.User
			fields[fmt.Sprintf("cpu%d.idle", id)] = cpu2.Idle - cpu1.Idle
		}
		fields["ctx_switch_per_sec"] = int64(stat2.ContextSwitches - stat1.ContextSwitches)
		fields["int_per_sec"] = int64(stat2.IRQTotal - stat1.IRQTotal)

		if err := in.emit(ctx, fields); err != nil {
			return nil
		}

		elapsed := time.Since(t0)
		if elapsed > in.cpuInterval {
			in.logger.Info("metricsPollOverrun", "subsystem", "cpu", "elapsed", elapsed, "interval", in.cpuInterval)
			if in.sleepOrTrip(ctx, time.Microsecond) {
				return nil
			}
			continue
		}
		if in.sleepOrTrip(ctx, in.cpuInterval-elapsed) {
			return nil
		}
	}
}

func (in *Input) pollMemory(ctx context.Context) error {
	for {
		t0 := time.Now()
		mem, err := in.fs.Meminfo()
		if err != nil {
			in.logger.Info("metricsMemoryError", "err", err)
			if in.sleepOrTrip(ctx, in.memInterval) {
				return nil
			}
			continue
		}

		fields := map[string]any{}
		if mem.MemFree != nil {
			fields["memory.free_bytes"] = int64(*mem.MemFree) * 1024
		}
		if mem.MemTotal != nil && mem.MemFree != nil {
			fields["memory.used_bytes"] = int64(*mem.MemTotal-*mem.MemFree) * 1024
		}
		if mem.SwapFree != nil {
			fields["swap.free_bytes"] = int64(*mem.SwapFree) * 1024
		}
		if mem.SwapTotal != nil && mem.SwapFree != nil {
			fields["swap.used_bytes"] = int64(*mem.SwapTotal-*mem.SwapFree) * 1024
		}

		if err := in.emit(ctx, fields); err != nil {
			return nil
		}

		elapsed := time.Since(t0)
		if elapsed > in.memInterval {
			in.logger.Info("metricsPollOverrun", "subsystem", "memory", "elapsed", elapsed, "interval", in.memInterval)
			if in.sleepOrTrip(ctx, time.Microsecond) {
				return nil
			}
			continue
		}
		if in.sleepOrTrip(ctx, in.memInterval-elapsed) {
			return nil
		}
	}
}

func (in *Input) pollDisk(ctx context.Context) error {
	for {
		t0 := time.Now()
		stats1, err := in.fs.ProcDiskstats()
		if err != nil {
			in.logger.Info("metricsDiskError", "err", err)
			if in.sleepOrTrip(ctx, time.Second) {
				return nil
			}
			continue
		}
		if in.sleepOrTrip(ctx, time.Second) {
			return nil
		}
		stats2, err := in.fs.ProcDiskstats()
		if err != nil {
			in.logger.Info("metricsDiskError", "err", err)
			continue
		}

		byName := make(map[string]procfs.Diskstats, len(stats1))
		for _, d := range stats1 {
			byName[d.DeviceName] = d
		}
		for _, d2 := range stats2 {
			d1, ok := byName[d2.DeviceName]
			if !ok {
				continue
			}
			fields := map[string]any{
				"device":            d2.DeviceName,
				"reads_sec":         int64(d2.ReadIOs - d1.ReadIOs),
				"writes_sec":        int64(d2.WriteIOs - d1.WriteIOs),
				"bytes_read_sec":    int64(d2.ReadSectors-d1.ReadSectors) * 512,
				"bytes_written_sec": int64(d2.WriteSectors-d1.WriteSectors) * 512,
			}
			if err := in.emit(ctx, fields); err != nil {
				return nil
			}
		}

		elapsed := time.Since(t0)
		if elapsed > in.diskInterval {
			in.logger.Info("metricsPollOverrun", "subsystem", "disk", "elapsed", elapsed, "interval", in.diskInterval)
			if in.sleepOrTrip(ctx, time.Microsecond) {
				return nil
			}
			continue
		}
		if in.sleepOrTrip(ctx, in.diskInterval-elapsed) {
			return nil
		}
	}
}

func (in *Input) pollNet(ctx context.Context) error {
	for {
		t0 := time.Now()
		dev1, err := in.fs.NetDev()
		if err != nil {
			in.logger.Info("metricsNetError", "err", err)
			if in.sleepOrTrip(ctx, time.Second) {
				return nil
			}
			continue
		}
		if in.sleepOrTrip(ctx, time.Second) {
			return nil
		}
		dev2, err := in.fs.NetDev()
		if err != nil {
			in.logger.Info("metricsNetError", "err", err)
			continue
		}

		for iface, l2 := range dev2 {
			l1, ok := dev1[iface]
			if !ok {
				continue
			}
			fields := map[string]any{
				"interface":        iface,
				"bytes_sent_sec":   int64(l2.TxBytes - l1.TxBytes),
				"bytes_recv_sec":   int64(l2.RxBytes - l1.RxBytes),
				"packets_sent_sec": int64(l2.TxPackets - l1.TxPackets),
				"packets_recv_sec": int64(l2.RxPackets - l1.RxPackets),
				"errors_sent_sec":  int64(l2.TxErrors - l1.TxErrors),
				"errors_recv_sec":  int64(l2.RxErrors - l1.RxErrors),
				"drop_sent_sec":    int64(l2.TxDropped - l1.TxDropped),
				"drop_recv_sec":    int64(l2.RxDropped - l1.RxDropped),
			}
			if err := in.emit(ctx, fields); err != nil {
				return nil
			}
		}

		elapsed := time.Since(t0)
		if elapsed > in.netInterval {
			in.logger.Info("metricsPollOverrun", "subsystem", "net", "elapsed", elapsed, "interval", in.netInterval)
			if in.sleepOrTrip(ctx, time.Microsecond) {
				return nil
			}
			continue
		}
		if in.sleepOrTrip(ctx, in.netInterval-elapsed) {
			return nil
		}
	}
}
