//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: _examples/original_source/log-ship/src/plugins/journald.rs
// Adapted from: plugins/file's cursor/state-file persistence pattern
//

// Package journal implements the systemd-journal input: a cursor-file
// backed tailer over github.com/coreos/go-systemd/v22/sdjournal.
//
// The go-systemd binding does not expose sd_journal_open's SD_JOURNAL_SYSTEM
// / SD_JOURNAL_CURRENTUSER flags directly; the journal option is therefore
// validated but does not change which journal is opened: the combined
// journal is read regardless of "system"/"user"/"all".
package journal

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bassosimone/logship"
	"github.com/coreos/go-systemd/v22/sdjournal"
)

// PluginName is the name this package registers itself under.
const PluginName = "journal"

// Register adds the journal-tailer input factory to registry.
func Register(registry *logship.Registry) {
	registry.Register(PluginName, New)
}

// New implements [logship.Factory]. Recognised options: journal
// ("system"|"user"|"all"; default "all"), from_beginning (bool),
// cursor_file (string, required), channel_size.
func New(ctx context.Context, args logship.Args, cfg *logship.Config, logger logship.SLogger, tw *logship.Tripwire) (logship.Plugin, error) {
	scope, err := args.StringOr("journal", "all")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(scope) {
	case "system", "user", "all":
	default:
		return nil, fmt.Errorf("%w: journal must be one of system|user|all, got %q", logship.ErrConfiguration, scope)
	}
	fromBeginning, err := args.Bool("from_beginning", false)
	if err != nil {
		return nil, err
	}
	cursorFile, err := args.String("cursor_file")
	if err != nil {
		return nil, err
	}
	channelSize, err := args.ChannelSize()
	if err != nil {
		return nil, err
	}

	j, err := sdjournal.NewJournal()
	if err != nil {
		return nil, fmt.Errorf("%w: opening journal: %v", logship.ErrResourceAcquisition, err)
	}

	if cursor, rerr := os.ReadFile(cursorFile); rerr == nil {
		if serr := j.SeekCursor(strings.TrimSpace(string(cursor))); serr != nil {
			j.Close()
			return nil, fmt.Errorf("%w: seeking to cursor in %s: %v", logship.ErrResourceAcquisition, cursorFile, serr)
		}
		j.Next() // move past the last-read entry
	} else if fromBeginning {
		if serr := j.SeekHead(); serr != nil {
			j.Close()
			return nil, fmt.Errorf("%w: seeking to head: %v", logship.ErrResourceAcquisition, serr)
		}
	} else {
		if serr := j.SeekTail(); serr != nil {
			j.Close()
			return nil, fmt.Errorf("%w: seeking to tail: %v", logship.ErrResourceAcquisition, serr)
		}
		j.Next()
	}

	return &Input{
		journal:    j,
		cursorFile: cursorFile,
		ch:         logship.NewChannel(tw, channelSize),
		logger:     logger,
		tw:         tw,
	}, nil
}

// Input tails the systemd journal, persisting its cursor per ack.
type Input struct {
	journal    *sdjournal.Journal
	cursorFile string
	ch         *logship.Channel
	logger     logship.SLogger
	tw         *logship.Tripwire
}

// Name implements [logship.Plugin].
func (in *Input) Name() string { return PluginName }

// GetReceiver implements [logship.Producer].
func (in *Input) GetReceiver() *logship.Channel { return in.ch }

// Run implements [logship.Plugin].
func (in *Input) Run(ctx context.Context) error {
	defer in.ch.Close()
	defer in.journal.Close()

	for {
		select {
		case <-in.tw.Done():
			return nil
		default:
		}

		n, err := in.journal.Next()
		if err != nil {
			in.logger.Info("journalReadError", "err", err)
			return nil
		}
		if n == 0 {
			status, werr := in.journal.Wait(500 * time.Millisecond)
			if werr != nil {
				in.logger.Info("journalWaitError", "err", werr)
				return nil
			}
			if status == sdjournal.SDJournalNop {
				continue
			}
			continue
		}

		entry, err := in.journal.GetEntry()
		if err != nil {
			in.logger.Info("journalEntryError", "err", err)
			continue
		}

		fields := make(map[string]any, len(entry.Fields)+1)
		for k, v := range entry.Fields {
			fields[k] = v
		}
		fields["t"] = time.Unix(0, int64(entry.RealtimeTimestamp)*int64(time.Microsecond))

		cursor, cerr := in.journal.GetCursor()
		ack := logship.NoopAck
		if cerr == nil {
			ack = logship.NewAckOnce(func() {
				if werr := os.WriteFile(in.cursorFile, []byte(cursor), 0o644); werr != nil {
					in.logger.Info("ackFailure", "path", in.cursorFile, "err", werr)
				}
			})
		}

		env := logship.NewEnvelope(logship.NewStructuredEvent(fields), ack)
		if err := in.ch.Send(ctx, env); err != nil {
			return nil
		}
	}
}
