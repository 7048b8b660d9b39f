package realtime

import (
	"context"
	"net/http"
	"time"

	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/graphstudio/engine/internal/metrics"
	"github.com/graphstudio/engine/internal/models"
	"github.com/graphstudio/engine/pkg/logger"
)

// SessionResolver maps an opaque session token to its project.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Project, error)
}

// SnapshotProvider supplies the full graph sent to a freshly joined
// connection.
type SnapshotProvider interface {
	Graph(ctx context.Context, projectID string) (*models.GraphData, error)
}

// Settings bound every network interaction of the realtime channel.
// PingInterval must be shorter than PongWait.
type Settings struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	MaxMessageLen  int64
	SendBufferSize int
	ResolveTimeout time.Duration
}

func DefaultSettings() *Settings {
	return &Settings{
		WriteTimeout:   10 * time.Second,
		PingInterval:   25 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageLen:  1 << 20,
		SendBufferSize: 64,
		ResolveTimeout: 5 * time.Second,
	}
}

// InitialData is the snapshot emitted to a connection on a successful
// join, and only to that connection.
type InitialData struct {
	Project *models.Project `json:"project"`
	Nodes   []models.Node   `json:"nodes"`
	Edges   []models.Edge   `json:"edges"`
}

// Hub owns the realtime room registry: which connections are joined to
// which project, and the per-project live count derived from it. The
// registry is process-local and resets on restart; nothing here is
// persisted.
type Hub struct {
	resolver  SessionResolver
	snapshots SnapshotProvider
	settings  *Settings
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*Conn]struct{}
}

func NewHub(resolver SessionResolver, snapshots SnapshotProvider, settings *Settings) *Hub {
	if settings == nil {
		settings = DefaultSettings()
	}
	return &Hub{
		resolver:  resolver,
		snapshots: snapshots,
		settings:  settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: map[string]map[*Conn]struct{}{},
	}
}

// ServeWS upgrades the request and runs the connection until it drops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := newConn(h, ws)
	go c.writePump()
	c.readPump()
}

// BroadcastToProject delivers one event to every connection in the
// project's room, the originator included; client-side merges are
// idempotent, so self-receipt is a no-op there. Delivery is best-effort.
func (h *Hub) BroadcastToProject(projectID, event string, payload any) {
	frame, err := NewEnvelope(event, payload)
	if err != nil {
		logger.L().Error("encode broadcast failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.rooms[projectID]))
	for c := range h.rooms[projectID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.send(frame)
	}
	if len(conns) > 0 {
		metrics.BroadcastsSent.WithLabelValues(event).Add(float64(len(conns)))
	}
}

// CloseProject drops every connection in the project's room. Called after
// a project cascade-delete so no client keeps mutating a dead project.
func (h *Hub) CloseProject(projectID string) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.rooms[projectID]))
	for c := range h.rooms[projectID] {
		// Marking the conn unjoined here makes the read pump's leave
		// transition a no-op; the gauge is decremented exactly once.
		c.projectID = ""
		conns = append(conns, c)
	}
	delete(h.rooms, projectID)
	h.mu.Unlock()

	for _, c := range conns {
		metrics.ConnectedClients.Dec()
		c.close()
	}
}

// ClientCount returns the live count for one project room.
func (h *Hub) ClientCount(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[projectID])
}

// TotalClients returns the number of joined connections across all rooms.
func (h *Hub) TotalClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, room := range h.rooms {
		total += len(room)
	}
	return total
}

// Shutdown closes every connection; used on graceful process exit.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	var conns []*Conn
	for _, room := range h.rooms {
		for c := range room {
			c.projectID = ""
			conns = append(conns, c)
		}
	}
	h.rooms = map[string]map[*Conn]struct{}{}
	h.mu.Unlock()

	for _, c := range conns {
		metrics.ConnectedClients.Dec()
		c.close()
	}
}

// handleJoin implements the Unjoined -> Joined(project) transition.
func (h *Hub) handleJoin(c *Conn, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.settings.ResolveTimeout)
	defer cancel()

	project, err := h.resolver.Resolve(ctx, token)
	if err != nil {
		// The caller alone learns about the failure; its state is unchanged.
		c.sendEvent(EventError, ErrorPayload{Message: "invalid session token"})
		return
	}

	h.mu.Lock()
	if c.projectID != "" && c.projectID != project.ID {
		h.removeLocked(c)
		prev := c.projectID
		count := len(h.rooms[prev])
		h.mu.Unlock()
		h.BroadcastToProject(prev, EventClientsUpdated, ClientsPayload{Clients: count})
		h.mu.Lock()
	} else if c.projectID == "" {
		metrics.ConnectedClients.Inc()
	}
	c.projectID = project.ID
	room, ok := h.rooms[project.ID]
	if !ok {
		room = map[*Conn]struct{}{}
		h.rooms[project.ID] = room
	}
	room[c] = struct{}{}
	count := len(room)
	h.mu.Unlock()

	// Everyone in the room, the joiner included, sees the new live count.
	h.BroadcastToProject(project.ID, EventClientsUpdated, ClientsPayload{Clients: count})

	snapshot, err := h.snapshots.Graph(ctx, project.ID)
	if err != nil {
		logger.L().Error("join snapshot failed", zap.String("project_id", project.ID), zap.Error(err))
		c.sendEvent(EventError, ErrorPayload{Message: "failed to load project data"})
		return
	}
	c.sendEvent(EventInitialData, InitialData{Project: project, Nodes: snapshot.Nodes, Edges: snapshot.Edges})
	logger.L().Info("client joined project",
		zap.String("project_id", project.ID),
		zap.Int("clients", count),
	)
}

// handleLeave implements Joined -> Unjoined on disconnect.
func (h *Hub) handleLeave(c *Conn) {
	h.mu.Lock()
	if c.projectID == "" {
		h.mu.Unlock()
		return
	}
	projectID := c.projectID
	h.removeLocked(c)
	c.projectID = ""
	count := len(h.rooms[projectID])
	h.mu.Unlock()

	metrics.ConnectedClients.Dec()
	h.BroadcastToProject(projectID, EventClientsUpdated, ClientsPayload{Clients: count})
}

// removeLocked deletes c from its room; the caller holds h.mu. Room
// membership is a set, so a double removal cannot drive the count below
// zero.
func (h *Hub) removeLocked(c *Conn) {
	room := h.rooms[c.projectID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.projectID)
	}
}
