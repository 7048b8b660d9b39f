package types

import "github.com/graphstudio/engine/internal/models"

// Request DTOs carry the full required-field contract as validator tags,
// so the boundary check is a single Struct call instead of scattered
// conditionals. Coordinates use pointers: "x": 0 is a valid position,
// while a missing x is a validation error.

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type NodeRequest struct {
	ID          string   `json:"id" validate:"required"`
	Label       string   `json:"label" validate:"required"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	X           *float64 `json:"x" validate:"required"`
	Y           *float64 `json:"y" validate:"required"`
}

func (r *NodeRequest) ToModel() *models.Node {
	return &models.Node{
		ID:          r.ID,
		Label:       r.Label,
		Description: r.Description,
		Icon:        r.Icon,
		X:           *r.X,
		Y:           *r.Y,
	}
}

type EdgeRequest struct {
	ID     string `json:"id" validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

func (r *EdgeRequest) ToModel() *models.Edge {
	return &models.Edge{ID: r.ID, Source: r.Source, Target: r.Target}
}

// ImportRequest replaces a project's whole graph. Both arrays must be
// present; empty arrays are a legal way to wipe the project.
type ImportRequest struct {
	Nodes *[]NodeRequest `json:"nodes" validate:"required,dive"`
	Edges *[]EdgeRequest `json:"edges" validate:"required,dive"`
}

func (r *ImportRequest) ToModel() *models.GraphData {
	data := &models.GraphData{Nodes: []models.Node{}, Edges: []models.Edge{}}
	for i := range *r.Nodes {
		data.Nodes = append(data.Nodes, *(*r.Nodes)[i].ToModel())
	}
	for i := range *r.Edges {
		data.Edges = append(data.Edges, *(*r.Edges)[i].ToModel())
	}
	return data
}

// ProjectListItem is a project plus its live room count.
type ProjectListItem struct {
	models.Project
	Clients int `json:"clients"`
}
