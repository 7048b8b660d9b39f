package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Realtime channel event names; the wire contract shared with the server.
const (
	eventJoinProject    = "joinProject"
	eventInitialData    = "initialData"
	eventClientsUpdated = "clientsUpdated"
	eventNodeUpdated    = "nodeUpdated"
	eventNodeDeleted    = "nodeDeleted"
	eventEdgeUpdated    = "edgeUpdated"
	eventEdgeDeleted    = "edgeDeleted"
	eventDataImported   = "dataImported"
	eventDataCleared    = "dataCleared"
	eventProjectDeleted = "projectDeleted"
	eventError          = "error"
)

type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RealtimeHandlers are optional callbacks for events that carry meaning
// beyond the mirror merge. Connectivity changes arrive separately from
// data-level errors.
type RealtimeHandlers struct {
	OnInitialData    func(project Project)
	OnClientsUpdated func(clients int)
	OnProjectDeleted func()
	OnError          func(message string)
	OnDisconnect     func(err error)
}

// Realtime subscribes to a project's broadcast stream and merges every
// event into the mirror as it arrives. Broadcast application is
// unconditional: a received row overwrites the local copy with no version
// check (last write wins).
type Realtime struct {
	ws       *websocket.Conn
	mirror   *Mirror
	handlers RealtimeHandlers

	writeMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// DialRealtime connects to the engine's /ws endpoint. baseURL is the
// http(s) server URL; the scheme is rewritten for the websocket dial.
func DialRealtime(ctx context.Context, baseURL string, mirror *Mirror, handlers RealtimeHandlers) (*Realtime, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Realtime{
		ws:       ws,
		mirror:   mirror,
		handlers: handlers,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.readLoop(runCtx)
	return r, nil
}

// Join binds this connection to the project the token resolves to. The
// server answers with a clientsUpdated count and an initialData snapshot,
// which replaces the mirror.
func (r *Realtime) Join(token string) error {
	payload, _ := json.Marshal(map[string]string{"token": token})
	frame, _ := json.Marshal(wsEnvelope{Event: eventJoinProject, Data: payload})
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return r.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close tears the subscription down. It returns after the read loop has
// stopped, so no late event can touch a mirror the caller is discarding.
func (r *Realtime) Close() error {
	r.cancel()
	err := r.ws.Close()
	<-r.done
	return err
}

func (r *Realtime) readLoop(ctx context.Context) {
	defer close(r.done)
	for {
		_, raw, err := r.ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && r.handlers.OnDisconnect != nil {
				r.handlers.OnDisconnect(err)
			}
			return
		}
		var env wsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		r.dispatch(env)
	}
}

func (r *Realtime) dispatch(env wsEnvelope) {
	switch env.Event {
	case eventInitialData:
		var data struct {
			Project Project `json:"project"`
			Nodes   []Node  `json:"nodes"`
			Edges   []Edge  `json:"edges"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return
		}
		r.mirror.Replace(data.Nodes, data.Edges)
		if r.handlers.OnInitialData != nil {
			r.handlers.OnInitialData(data.Project)
		}
	case eventNodeUpdated:
		var n Node
		if err := json.Unmarshal(env.Data, &n); err == nil {
			r.mirror.UpsertNode(n)
		}
	case eventNodeDeleted:
		var d struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &d); err == nil {
			r.mirror.RemoveNode(d.ID)
		}
	case eventEdgeUpdated:
		var e Edge
		if err := json.Unmarshal(env.Data, &e); err == nil {
			r.mirror.UpsertEdge(e)
		}
	case eventEdgeDeleted:
		var d struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &d); err == nil {
			r.mirror.RemoveEdge(d.ID)
		}
	case eventDataImported:
		var data GraphData
		if err := json.Unmarshal(env.Data, &data); err == nil {
			r.mirror.Replace(data.Nodes, data.Edges)
		}
	case eventDataCleared:
		r.mirror.Clear()
	case eventProjectDeleted:
		r.mirror.Clear()
		if r.handlers.OnProjectDeleted != nil {
			r.handlers.OnProjectDeleted()
		}
	case eventClientsUpdated:
		var c struct {
			Clients int `json:"clients"`
		}
		if err := json.Unmarshal(env.Data, &c); err == nil && r.handlers.OnClientsUpdated != nil {
			r.handlers.OnClientsUpdated(c.Clients)
		}
	case eventError:
		var e struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &e); err == nil && r.handlers.OnError != nil {
			r.handlers.OnError(e.Message)
		}
	}
}
