package models

// Node is one vertex of a project's graph. Identity is (ID, ProjectID):
// node ids are unique only within a project, and writing an existing id
// replaces the row in place (upsert, not a new identity).
//
// UpdatedAt is a server-assigned write timestamp in unix microseconds,
// strictly increasing within a project so delta queries can order on it.
// Gorm's automatic timestamp tracking is disabled: the repository assigns
// it inside the write transaction.
type Node struct {
	ID          string  `gorm:"primaryKey" json:"id"`
	ProjectID   string  `gorm:"type:uuid;primaryKey" json:"-"`
	Label       string  `gorm:"not null" json:"label"`
	Description string  `gorm:"type:text" json:"description"`
	Icon        string  `json:"icon"`
	X           float64 `gorm:"not null" json:"x"`
	Y           float64 `gorm:"not null" json:"y"`
	UpdatedAt   int64   `gorm:"index;not null;autoUpdateTime:false" json:"updated_at"`
}

// Edge connects two nodes of the same project. Source and Target reference
// Node ids within the same project; deleting a node deletes every edge
// referencing it, atomically with the node row.
//
// ProjectID and UpdatedAt are internal bookkeeping and never serialized to
// clients: the wire shape of an edge is {id, source, target}.
type Edge struct {
	ID        string `gorm:"primaryKey" json:"id"`
	ProjectID string `gorm:"type:uuid;primaryKey" json:"-"`
	Source    string `gorm:"not null" json:"source"`
	Target    string `gorm:"not null" json:"target"`
	UpdatedAt int64  `gorm:"index;not null;autoUpdateTime:false" json:"-"`
}

// GraphData is a full or partial graph payload: snapshot responses, delta
// responses, and bulk imports all share this shape.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
