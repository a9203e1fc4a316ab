// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/palisade/palisade/internal/xdg"
)

var (
	channelFullCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palisade_audit_channel_full_total",
		Help: "Total number of times the async audit channel was full",
	})

	failuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_audit_failures_total",
		Help: "Total number of audit write failures",
	}, []string{"reason"})

	walEntriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palisade_audit_wal_entries",
		Help: "Current number of entries in the audit WAL",
	})
)

// Recorder routes audit entries to a Store. Denial-class entries are
// written synchronously with a local WAL as fallback; everything else
// goes through a buffered async channel. Either way the caller's primary
// operation never fails because the audit write did.
type Recorder struct {
	store     Store
	walPath   string
	walFile   *os.File
	walMu     sync.Mutex
	asyncChan chan Entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewRecorder creates a Recorder writing through the given store.
// If walPath is empty, a default path in the XDG state directory is used.
func NewRecorder(store Store, walPath string) *Recorder {
	if walPath == "" {
		stateDir := xdg.StateDir()
		if err := xdg.EnsureDir(stateDir); err != nil {
			slog.Error("failed to ensure state directory for audit WAL", "error", err)
			walPath = filepath.Join(os.TempDir(), "palisade-audit-wal.jsonl")
		} else {
			walPath = filepath.Join(stateDir, "audit-wal.jsonl")
		}
	}

	r := &Recorder{
		store:     store,
		walPath:   walPath,
		asyncChan: make(chan Entry, 1000),
		stopChan:  make(chan struct{}),
	}

	r.wg.Add(1)
	go r.asyncConsumer()

	return r
}

// Record accepts an entry. It never returns an error: audit is best
// effort relative to the primary operation, and failures are surfaced
// through logs and metrics instead.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.Action.Denial() {
		if err := r.store.Append(ctx, entry); err != nil {
			if walErr := r.writeToWAL(entry); walErr != nil {
				slog.Error("audit write failed: both store and WAL failed",
					"store_error", err,
					"wal_error", walErr,
					"actor", entry.Actor,
					"action", entry.Action,
				)
				failuresCounter.WithLabelValues("wal_failed").Inc()
			}
		}
		return
	}

	select {
	case r.asyncChan <- entry:
	default:
		channelFullCounter.Inc()
	}
}

// asyncConsumer processes async writes from the channel.
func (r *Recorder) asyncConsumer() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.asyncChan:
			if err := r.store.Append(context.Background(), entry); err != nil {
				slog.Error("async audit write failed",
					"error", err,
					"actor", entry.Actor,
					"action", entry.Action,
				)
				failuresCounter.WithLabelValues("async_write_failed").Inc()
			}
		case <-r.stopChan:
			r.drainAsync()
			return
		}
	}
}

// drainAsync processes all remaining entries in the channel.
func (r *Recorder) drainAsync() {
	for {
		select {
		case entry := <-r.asyncChan:
			if err := r.store.Append(context.Background(), entry); err != nil {
				slog.Error("async audit write failed during drain",
					"error", err,
					"actor", entry.Actor,
				)
				failuresCounter.WithLabelValues("async_write_failed").Inc()
			}
		default:
			return
		}
	}
}

// writeToWAL appends an entry to the local write-ahead log.
func (r *Recorder) writeToWAL(entry Entry) error {
	r.walMu.Lock()
	defer r.walMu.Unlock()

	if r.walFile == nil {
		file, err := os.OpenFile(r.walPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_SYNC, 0o600)
		if err != nil {
			return oops.With("path", r.walPath).Wrap(err)
		}
		r.walFile = file
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return oops.Wrap(err)
	}

	if _, err := fmt.Fprintf(r.walFile, "%s\n", data); err != nil {
		return oops.Wrap(err)
	}

	walEntriesGauge.Inc()
	return nil
}

// ReplayWAL writes WAL entries back to the store, retrying each with
// exponential backoff, and truncates the WAL on success. Call on startup
// before serving so entries stranded by a store outage are recovered.
func (r *Recorder) ReplayWAL(ctx context.Context) error {
	r.walMu.Lock()
	defer r.walMu.Unlock()

	if _, err := os.Stat(r.walPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(r.walPath)
	if err != nil {
		return oops.With("path", r.walPath).Wrap(err)
	}
	if len(data) == 0 {
		return nil
	}

	replayed := 0
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Error("failed to unmarshal WAL entry", "error", err, "line", line)
			failuresCounter.WithLabelValues("wal_unmarshal_failed").Inc()
			continue
		}

		backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			return retry.RetryableError(r.store.Append(ctx, entry))
		})
		if err != nil {
			slog.Error("failed to replay WAL entry", "error", err, "actor", entry.Actor)
			failuresCounter.WithLabelValues("wal_replay_failed").Inc()
			continue
		}
		replayed++
	}

	if err := os.Truncate(r.walPath, 0); err != nil {
		return oops.With("path", r.walPath).Wrap(err)
	}

	walEntriesGauge.Set(0)
	slog.Info("replayed audit WAL entries", "count", replayed)
	return nil
}

// Close drains the async channel and releases the WAL file.
func (r *Recorder) Close() error {
	close(r.stopChan)
	r.wg.Wait()

	r.walMu.Lock()
	defer r.walMu.Unlock()
	if r.walFile != nil {
		if err := r.walFile.Close(); err != nil {
			return oops.Wrap(err)
		}
		r.walFile = nil
	}

	return nil
}

// Compile-time interface check.
var _ Sink = (*Recorder)(nil)
