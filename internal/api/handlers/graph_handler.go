package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/graphstudio/engine/internal/api/middleware"
	"github.com/graphstudio/engine/internal/api/types"
	"github.com/graphstudio/engine/internal/models"
	"github.com/graphstudio/engine/internal/services"
	appErr "github.com/graphstudio/engine/pkg/errors"
)

// GraphHandler serves the node/edge CRUD surface. Every operation is
// scoped by the project the auth middleware resolved; client-supplied
// project hints are never consulted.
type GraphHandler struct {
	graphs services.GraphService
}

func NewGraphHandler(graphs services.GraphService) *GraphHandler {
	return &GraphHandler{graphs: graphs}
}

func (h *GraphHandler) Graph(w http.ResponseWriter, r *http.Request) {
	data, err := h.graphs.Graph(r.Context(), middleware.GetProject(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, data)
}

func (h *GraphHandler) Nodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.graphs.Nodes(r.Context(), middleware.GetProject(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string][]models.Node{"nodes": nodes})
}

func (h *GraphHandler) Edges(w http.ResponseWriter, r *http.Request) {
	edges, err := h.graphs.Edges(r.Context(), middleware.GetProject(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string][]models.Edge{"edges": edges})
}

func (h *GraphHandler) SaveNode(w http.ResponseWriter, r *http.Request) {
	h.saveNode(w, r, "")
}

// UpdateNode is SaveNode with the additional constraint that the URL id
// and the body id agree.
func (h *GraphHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	h.saveNode(w, r, chi.URLParam(r, "id"))
}

func (h *GraphHandler) saveNode(w http.ResponseWriter, r *http.Request, urlID string) {
	var req types.NodeRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if urlID != "" && req.ID != urlID {
		writeError(w, appErr.New(appErr.CodeInvalid, "node id in URL must match the id in the request body"))
		return
	}
	node := req.ToModel()
	if err := h.graphs.SaveNode(r.Context(), middleware.GetProject(r.Context()).ID, node); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, node)
}

func (h *GraphHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	res, err := h.graphs.DeleteNode(r.Context(), middleware.GetProject(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *GraphHandler) SaveEdge(w http.ResponseWriter, r *http.Request) {
	h.saveEdge(w, r, "")
}

func (h *GraphHandler) UpdateEdge(w http.ResponseWriter, r *http.Request) {
	h.saveEdge(w, r, chi.URLParam(r, "id"))
}

func (h *GraphHandler) saveEdge(w http.ResponseWriter, r *http.Request, urlID string) {
	var req types.EdgeRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if urlID != "" && req.ID != urlID {
		writeError(w, appErr.New(appErr.CodeInvalid, "edge id in URL must match the id in the request body"))
		return
	}
	edge := req.ToModel()
	if err := h.graphs.SaveEdge(r.Context(), middleware.GetProject(r.Context()).ID, edge); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, edge)
}

func (h *GraphHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.graphs.DeleteEdge(r.Context(), middleware.GetProject(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
