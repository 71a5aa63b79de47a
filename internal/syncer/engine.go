// Package syncer keeps the local store and the remote snapshot store
// eventually consistent. It owns the startup/manual sync decision table,
// the snapshot-diff merge, and the periodic upload loop.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Benioh/reflection-journal/internal/logging"
	"github.com/Benioh/reflection-journal/internal/models"
	"github.com/Benioh/reflection-journal/internal/remote"
)

// Direction selects which way a manual sync moves data.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
	DirectionBoth     Direction = "both"
)

// ParseDirection validates a user-supplied direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUpload, DirectionDownload, DirectionBoth:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown sync direction %q", s)
	}
}

// LocalStore is the slice of the repository the engine needs.
type LocalStore interface {
	LatestModifiedTime(ctx context.Context) (time.Time, bool, error)
	Export(ctx context.Context) (*models.Snapshot, error)
	ReplaceAll(ctx context.Context, snap *models.Snapshot) error
	Restore(ctx context.Context, r *models.Reflection) error
}

// StatePersistence records the last successful sync time across restarts.
type StatePersistence interface {
	LoadLastSyncTime(ctx context.Context) (time.Time, bool)
	SaveLastSyncTime(ctx context.Context, t time.Time) error
}

// Config tunes the engine.
type Config struct {
	// Interval is the periodic upload-check cadence.
	Interval time.Duration

	// SkewWindow is the modification-time distance under which local and
	// remote are treated as already consistent. It absorbs clock and
	// export-timing skew between devices; it is a tunable heuristic, not a
	// correctness guarantee.
	SkewWindow time.Duration

	// SyncDeletions controls whether a record missing from a newer remote
	// snapshot is deleted locally (true) or restored and re-uploaded (false).
	SyncDeletions bool
}

const (
	DefaultInterval   = 30 * time.Second
	DefaultSkewWindow = 60 * time.Second
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.Interval <= 0 {
		out.Interval = DefaultInterval
	}
	if out.SkewWindow <= 0 {
		out.SkewWindow = DefaultSkewWindow
	}
	return out
}

// Status is a point-in-time view of the engine for the UI layer.
type Status struct {
	Configured      bool
	Syncing         bool
	LastSyncTime    time.Time
	HasSynced       bool
	AutoSyncEnabled bool
}

// Engine orchestrates sync sessions. Only one session runs at a time;
// a second request is rejected, not queued.
type Engine struct {
	local  LocalStore
	remote remote.Store
	state  StatePersistence
	cfg    Config
	log    logging.Logger

	mu        sync.Mutex
	syncing   bool
	lastSync  time.Time
	hasSynced bool
	autoSync  bool
	callbacks []func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(local LocalStore, rs remote.Store, state StatePersistence, cfg Config, log logging.Logger) *Engine {
	e := &Engine{
		local:  local,
		remote: rs,
		state:  state,
		cfg:    cfg.withDefaults(),
		log:    log.With("component", "syncer"),
	}
	e.lastSync, e.hasSynced = state.LoadLastSyncTime(context.Background())
	return e
}

// OnSyncComplete registers a callback invoked after every successful sync.
func (e *Engine) OnSyncComplete(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, fn)
}

// Status reports the current engine state. The remote probe runs outside
// the engine mutex so a slow first probe cannot stall concurrent sessions.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	st := Status{
		Syncing:         e.syncing,
		LastSyncTime:    e.lastSync,
		HasSynced:       e.hasSynced,
		AutoSyncEnabled: e.autoSync,
	}
	e.mu.Unlock()

	st.Configured = e.remote.IsConfigured(ctx)
	return st
}

// beginSession claims the single sync slot. It reports false when another
// session is already active.
func (e *Engine) beginSession() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return false
	}
	e.syncing = true
	return true
}

func (e *Engine) endSession() {
	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()
}

// recordSuccess stamps and persists the last sync time, then notifies
// completion callbacks.
func (e *Engine) recordSuccess(ctx context.Context) {
	now := time.Now().UTC()

	e.mu.Lock()
	e.lastSync = now
	e.hasSynced = true
	callbacks := make([]func(), len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.mu.Unlock()

	if err := e.state.SaveLastSyncTime(ctx, now); err != nil {
		e.log.Error(ctx, "failed to persist sync time", "error", err)
	}

	for _, fn := range callbacks {
		fn()
	}
}

// Sync runs one manual sync session in the given direction. It returns
// false when the remote is unconfigured, when another session is active,
// or when the session fails; details go to the log, never to the caller.
func (e *Engine) Sync(ctx context.Context, dir Direction) bool {
	if !e.remote.IsConfigured(ctx) {
		e.log.Debug(ctx, "sync skipped, remote not configured")
		return false
	}
	if !e.beginSession() {
		e.log.Warn(ctx, "sync rejected, another session is active")
		return false
	}
	defer e.endSession()

	var ok bool
	switch dir {
	case DirectionUpload:
		ok = e.upload(ctx)
	case DirectionDownload:
		ok = e.download(ctx)
	default:
		ok = e.syncBoth(ctx)
	}

	if ok {
		e.recordSuccess(ctx)
	}
	return ok
}

// upload replaces the remote snapshot with a fresh local export.
func (e *Engine) upload(ctx context.Context) bool {
	snap, err := e.local.Export(ctx)
	if err != nil {
		e.log.Error(ctx, "export failed", "error", err)
		return false
	}
	if err := e.remote.WriteSnapshot(ctx, snap); err != nil {
		e.log.Error(ctx, "upload failed", "error", err, "records", snap.TotalCount)
		return false
	}
	e.log.Info(ctx, "uploaded snapshot", "records", snap.TotalCount)
	return true
}

// download overwrites the local store wholesale with the latest remote
// snapshot.
func (e *Engine) download(ctx context.Context) bool {
	snap, err := e.remote.ReadLatestSnapshot(ctx)
	if err != nil {
		e.log.Error(ctx, "download failed", "error", err)
		return false
	}
	if snap == nil {
		e.log.Warn(ctx, "download skipped, remote holds no snapshot")
		return false
	}
	if err := e.local.ReplaceAll(ctx, snap); err != nil {
		e.log.Error(ctx, "local overwrite failed", "error", err)
		return false
	}
	e.log.Info(ctx, "downloaded snapshot", "records", snap.TotalCount)
	return true
}

// syncBoth runs the startup/manual decision table over local and remote
// modification times.
func (e *Engine) syncBoth(ctx context.Context) bool {
	localTime, localOK, err := e.local.LatestModifiedTime(ctx)
	if err != nil {
		e.log.Error(ctx, "cannot read local modification time", "error", err)
		return false
	}
	remoteTime, remoteOK, err := e.remote.LatestModifiedTime(ctx)
	if err != nil {
		e.log.Error(ctx, "cannot read remote modification time", "error", err)
		return false
	}

	switch {
	case !remoteOK:
		return e.upload(ctx)
	case !localOK:
		return e.download(ctx)
	default:
		return e.merge(ctx, localTime, remoteTime)
	}
}

// merge resolves divergence between a non-empty local store and a
// non-empty remote. Within the skew window the two sides are treated as
// consistent; otherwise the newer side wins at snapshot granularity, with
// locally-restorable records rescued when deletion sync is off.
func (e *Engine) merge(ctx context.Context, localTime, remoteTime time.Time) bool {
	diff := localTime.Sub(remoteTime)
	if diff < 0 {
		diff = -diff
	}
	if diff < e.cfg.SkewWindow {
		e.log.Debug(ctx, "already consistent",
			"local", localTime, "remote", remoteTime, "window", e.cfg.SkewWindow)
		return true
	}

	if localTime.After(remoteTime) {
		e.log.Info(ctx, "local is newer, uploading",
			"local", localTime, "remote", remoteTime)
		return e.upload(ctx)
	}

	e.log.Info(ctx, "remote is newer, merging",
		"local", localTime, "remote", remoteTime)
	return e.mergeFromRemote(ctx)
}

// mergeFromRemote overwrites local state with the remote snapshot and then
// compensates for records the remote never saw. The remote call happens
// between two local exports; the store is never locked across the network
// round trip.
func (e *Engine) mergeFromRemote(ctx context.Context) bool {
	before, err := e.local.Export(ctx)
	if err != nil {
		e.log.Error(ctx, "pre-merge export failed", "error", err)
		return false
	}

	remoteSnap, err := e.remote.ReadLatestSnapshot(ctx)
	if err != nil {
		e.log.Error(ctx, "cannot read remote snapshot", "error", err)
		return false
	}
	if remoteSnap == nil {
		// The snapshot disappeared between the time probe and the read.
		e.log.Warn(ctx, "remote snapshot vanished mid-merge")
		return false
	}

	if err := e.local.ReplaceAll(ctx, remoteSnap); err != nil {
		e.log.Error(ctx, "local overwrite failed", "error", err)
		return false
	}

	remoteIDs := remoteSnap.IDs()
	var onlyLocal []models.Reflection
	for _, r := range before.Reflections {
		if _, ok := remoteIDs[r.ID]; !ok {
			onlyLocal = append(onlyLocal, r)
		}
	}
	onlyRemote := 0
	beforeIDs := before.IDs()
	for id := range remoteIDs {
		if _, ok := beforeIDs[id]; !ok {
			onlyRemote++
		}
	}
	e.log.Info(ctx, "merged from remote",
		"records", remoteSnap.TotalCount,
		"only_local", len(onlyLocal),
		"only_remote", onlyRemote)

	if e.cfg.SyncDeletions || len(onlyLocal) == 0 {
		// Records absent from the remote were deleted elsewhere; let the
		// deletion propagate.
		return true
	}

	// Deletion sync is off: the remote's implicit deletions are unwanted.
	// Put the local-only records back and re-upload so they survive the
	// next poll.
	for i := range onlyLocal {
		if err := e.local.Restore(ctx, &onlyLocal[i]); err != nil {
			e.log.Error(ctx, "failed to restore record",
				"id", onlyLocal[i].ID, "error", err)
			return false
		}
	}
	e.log.Info(ctx, "restored local-only records", "count", len(onlyLocal))
	return e.upload(ctx)
}

// Start launches the background loop: an initial full sync followed by
// periodic upload checks. Stop cancels the loop and waits for it.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		cancel()
		return
	}
	e.cancel = cancel
	e.autoSync = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	e.Sync(ctx, DirectionBoth)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick uploads when local state changed since the last recorded sync.
// Periodic ticks never merge; the initial or manual sync resolves
// divergence, ticks just push local edits out.
func (e *Engine) tick(ctx context.Context) {
	if !e.remote.IsConfigured(ctx) {
		return
	}

	e.mu.Lock()
	lastSync, hasSynced := e.lastSync, e.hasSynced
	e.mu.Unlock()

	localTime, localOK, err := e.local.LatestModifiedTime(ctx)
	if err != nil {
		e.log.Error(ctx, "cannot read local modification time", "error", err)
		return
	}
	if !localOK {
		return
	}
	if hasSynced && !localTime.After(lastSync) {
		return
	}

	if !e.beginSession() {
		return
	}
	ok := e.upload(ctx)
	e.endSession()

	if ok {
		e.recordSuccess(ctx)
	}
}

// Stop shuts down the background loop and waits for the in-flight tick,
// if any, to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.autoSync = false
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()
}
