package client

import (
	"context"
	"time"
)

// Session ties the reconciliation layer together for one project: it
// applies local mutations optimistically to the mirror before the server
// confirms, subscribes to broadcasts, and runs the periodic delta poll.
//
// A failed server write is not rolled back locally; the mirror stays
// ahead of the server and the failure is surfaced through OnSyncError.
type Session struct {
	API    *Client
	Mirror *Mirror

	// OnSyncError observes server-write and delta-poll failures so the
	// caller can surface sync status to the user.
	OnSyncError func(error)

	PollInterval time.Duration
	Handlers     RealtimeHandlers

	rt     *Realtime
	syncer *Syncer
	cancel context.CancelFunc
}

// NewSession wraps an authorized Client (token already set via
// CreateProject or JoinProject).
func NewSession(api *Client) *Session {
	return &Session{API: api, Mirror: NewMirror()}
}

// Start seeds the mirror from a full snapshot, joins the realtime room,
// and begins the background delta poll. The snapshot's watermark becomes
// the first delta cursor.
func (s *Session) Start(ctx context.Context) error {
	wm, err := s.API.SyncTimestamp(ctx)
	if err != nil {
		return err
	}
	graph, err := s.API.Graph(ctx)
	if err != nil {
		return err
	}
	s.Mirror.Replace(graph.Nodes, graph.Edges)

	rt, err := DialRealtime(ctx, s.API.baseURL, s.Mirror, s.Handlers)
	if err != nil {
		return err
	}
	if err := rt.Join(s.API.Token()); err != nil {
		_ = rt.Close()
		return err
	}
	s.rt = rt

	s.syncer = NewSyncer(s.API, s.Mirror, s.PollInterval, s.OnSyncError)
	s.syncer.SetWatermark(wm)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.syncer.Run(runCtx)
	return nil
}

// Close stops all sync activity before the mirror is discarded: the poll
// loop is canceled and the realtime read loop joined, so no late arrival
// can repopulate a dead mirror.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.rt != nil {
		_ = s.rt.Close()
	}
	s.Mirror.Clear()
}

// SaveNode applies the node to the mirror immediately, then persists it.
func (s *Session) SaveNode(ctx context.Context, n Node) {
	s.Mirror.UpsertNode(n)
	if err := s.API.SaveNode(ctx, &n); err != nil {
		s.reportError(err)
	}
}

// DeleteNode removes the node and its edges locally, then persists.
func (s *Session) DeleteNode(ctx context.Context, id string) {
	s.Mirror.RemoveNode(id)
	if _, err := s.API.DeleteNode(ctx, id); err != nil {
		s.reportError(err)
	}
}

// SaveEdge applies the edge to the mirror immediately, then persists it.
func (s *Session) SaveEdge(ctx context.Context, e Edge) {
	s.Mirror.UpsertEdge(e)
	if err := s.API.SaveEdge(ctx, &e); err != nil {
		s.reportError(err)
	}
}

// DeleteEdge removes the edge locally, then persists.
func (s *Session) DeleteEdge(ctx context.Context, id string) {
	s.Mirror.RemoveEdge(id)
	if err := s.API.DeleteEdge(ctx, id); err != nil {
		s.reportError(err)
	}
}

func (s *Session) reportError(err error) {
	if s.OnSyncError != nil {
		s.OnSyncError(err)
	}
}
