package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/graphstudio/engine/internal/api/middleware"
	"github.com/graphstudio/engine/internal/api/types"
	"github.com/graphstudio/engine/internal/metrics"
	"github.com/graphstudio/engine/internal/models"
	"github.com/graphstudio/engine/internal/services"
)

// SyncHandler serves the delta-sync protocol plus bulk import/clear.
type SyncHandler struct {
	graphs  services.GraphService
	counter ClientCounter
}

func NewSyncHandler(graphs services.GraphService, counter ClientCounter) *SyncHandler {
	return &SyncHandler{graphs: graphs, counter: counter}
}

// ChangesResponse carries every row changed since the requested watermark
// plus the watermark to use for the next poll. Returning the project
// watermark (not wall clock) guarantees a row written while this response
// was being built is re-fetched next time instead of skipped.
type ChangesResponse struct {
	Timestamp int64         `json:"timestamp"`
	Nodes     []models.Node `json:"nodes"`
	Edges     []models.Edge `json:"edges"`
}

func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	// A malformed cursor degrades to 0: the full history qualifies.
	since, err := strconv.ParseInt(chi.URLParam(r, "timestamp"), 10, 64)
	if err != nil {
		since = 0
	}
	data, wm, err := h.graphs.ChangesSince(r.Context(), middleware.GetProject(r.Context()).ID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.DeltaQueries.Inc()
	writeData(w, http.StatusOK, ChangesResponse{Timestamp: wm, Nodes: data.Nodes, Edges: data.Edges})
}

func (h *SyncHandler) Timestamp(w http.ResponseWriter, r *http.Request) {
	wm, err := h.graphs.Watermark(r.Context(), middleware.GetProject(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"timestamp": wm})
}

func (h *SyncHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req types.ImportRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	nodeCount, edgeCount, err := h.graphs.Import(r.Context(), middleware.GetProject(r.Context()).ID, req.ToModel())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"nodeCount": nodeCount, "edgeCount": edgeCount})
}

func (h *SyncHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.graphs.Clear(r.Context(), middleware.GetProject(r.Context()).ID); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

// Status is the unauthenticated service heartbeat.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
		"clients":   h.counter.TotalClients(),
	})
}
