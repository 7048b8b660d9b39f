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

type ProjectsHandler struct {
	sessions services.SessionService
	counter  ClientCounter
}

func NewProjectsHandler(sessions services.SessionService, counter ClientCounter) *ProjectsHandler {
	return &ProjectsHandler{sessions: sessions, counter: counter}
}

// List returns every project with its live connected-client count. The
// counts come from the in-memory room registry and reset on restart.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.sessions.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]types.ProjectListItem, 0, len(projects))
	for _, p := range projects {
		items = append(items, types.ProjectListItem{Project: p, Clients: h.counter.ClientCount(p.ID)})
	}
	writeData(w, http.StatusOK, items)
}

type projectWithToken struct {
	Project *models.Project `json:"project"`
	Token   string          `json:"token"`
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.CreateProjectRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	project, token, err := h.sessions.CreateProject(r.Context(), &services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, projectWithToken{Project: project, Token: token})
}

// Join mints a new session token for an existing project; no credential
// is required, only knowledge of the project id.
func (h *ProjectsHandler) Join(w http.ResponseWriter, r *http.Request) {
	project, token, err := h.sessions.JoinProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, projectWithToken{Project: project, Token: token})
}

// Current resolves the caller's token to its project.
func (h *ProjectsHandler) Current(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, middleware.GetProject(r.Context()))
}

// Delete cascade-deletes the caller's own project. The path id must match
// the project resolved from the token; any other id is rejected without
// touching it.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if id := chi.URLParam(r, "id"); id != project.ID {
		writeError(w, appErr.New(appErr.CodeForbidden, "session token does not match project"))
		return
	}
	if err := h.sessions.DeleteProject(r.Context(), project.ID); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": project.ID})
}
