package client

import (
	"context"
	"sync"
	"time"
)

// Syncer periodically reconciles the mirror against the server by pulling
// everything changed since the last observed watermark. It covers events
// missed while disconnected; rows re-fetched at the boundary are absorbed
// by the mirror's idempotent upsert.
type Syncer struct {
	api      *Client
	mirror   *Mirror
	interval time.Duration

	// mu guards lastSync: Run polls on its own goroutine while callers
	// read the cursor through Watermark.
	mu       sync.Mutex
	lastSync int64

	onError func(error)
}

// NewSyncer creates a delta poller. A zero interval defaults to 10s, the
// protocol's standard cadence. onError, if non-nil, observes poll
// failures; polling continues afterward.
func NewSyncer(api *Client, mirror *Mirror, interval time.Duration, onError func(error)) *Syncer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Syncer{api: api, mirror: mirror, interval: interval, onError: onError}
}

// SetWatermark seeds the cursor, typically from a full snapshot's
// sync timestamp.
func (s *Syncer) SetWatermark(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync = ts
}

// Watermark returns the last observed server watermark.
func (s *Syncer) Watermark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// SyncOnce performs one delta pull and merge.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	changes, err := s.api.ChangesSince(ctx, s.Watermark())
	if err != nil {
		return err
	}
	s.mirror.Merge(changes.Nodes, changes.Edges)
	// Advance to the response's server watermark, not to the max row
	// timestamp: rows written while the response was in flight stay above
	// the cursor and are fetched next round.
	s.SetWatermark(changes.Timestamp)
	return nil
}

// Run polls until ctx is canceled. Cancel before discarding the mirror so
// no late response repopulates it.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if s.onError != nil {
					s.onError(err)
				}
			}
		}
	}
}
