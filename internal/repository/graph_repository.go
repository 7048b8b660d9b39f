package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/graphstudio/engine/internal/models"
	appErr "github.com/graphstudio/engine/pkg/errors"
)

// DeleteNodeResult reports how many rows a node deletion removed, the
// referencing edges included.
type DeleteNodeResult struct {
	NodesDeleted int64 `json:"nodesDeleted"`
	EdgesDeleted int64 `json:"edgesDeleted"`
}

// GraphRepository is the persistence gateway for a project's graph. Every
// mutating operation runs as one transaction covering the row write(s) and
// a single watermark bump, so a reader can never observe a watermark
// advance without the corresponding rows, or vice versa.
type GraphRepository interface {
	GetNodes(ctx context.Context, projectID string) ([]models.Node, error)
	GetEdges(ctx context.Context, projectID string) ([]models.Edge, error)

	UpsertNode(ctx context.Context, projectID string, n *models.Node) error
	UpsertEdge(ctx context.Context, projectID string, e *models.Edge) error
	DeleteNode(ctx context.Context, projectID, id string) (*DeleteNodeResult, error)
	DeleteEdge(ctx context.Context, projectID, id string) (int64, error)

	BulkUpsertNodes(ctx context.Context, projectID string, nodes []models.Node) error
	BulkUpsertEdges(ctx context.Context, projectID string, edges []models.Edge) error

	// ChangesSince returns every row with updated_at strictly greater than
	// since, plus the project watermark read before the rows. Deleted rows
	// leave no tombstones: a missed delete is only corrected by a full
	// snapshot.
	ChangesSince(ctx context.Context, projectID string, since int64) (*models.GraphData, int64, error)
	Watermark(ctx context.Context, projectID string) (int64, error)

	Clear(ctx context.Context, projectID string) error
	Import(ctx context.Context, projectID string, data *models.GraphData) (nodeCount, edgeCount int, err error)
}

type graphRepository struct {
	db *gorm.DB
}

func NewGraphRepository(db *gorm.DB) GraphRepository {
	return &graphRepository{db: db}
}

// upsertConflict is the insert-or-replace clause keyed by (id, project_id).
var upsertConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "id"}, {Name: "project_id"}},
	UpdateAll: true,
}

// bumpWatermark advances the project watermark inside tx and returns the
// new value. The clamp to last_sync+1 keeps the watermark strictly
// increasing even when two writes land within one clock tick, so no two
// rows in a project ever share an updated_at.
func bumpWatermark(tx *gorm.DB, projectID string) (int64, error) {
	now := time.Now().UnixMicro()
	res := tx.Model(&models.SyncStatus{}).Where("project_id = ?", projectID).
		Update("last_sync", gorm.Expr("CASE WHEN last_sync >= ? THEN last_sync + 1 ELSE ? END", now, now))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, appErr.New(appErr.CodeNotFound, "project not found")
	}
	var st models.SyncStatus
	if err := tx.First(&st, "project_id = ?", projectID).Error; err != nil {
		return 0, err
	}
	return st.LastSync, nil
}

func (r *graphRepository) GetNodes(ctx context.Context, projectID string) ([]models.Node, error) {
	var out []models.Node
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get nodes failed")
	}
	return out, nil
}

func (r *graphRepository) GetEdges(ctx context.Context, projectID string) ([]models.Edge, error) {
	var out []models.Edge
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get edges failed")
	}
	return out, nil
}

func (r *graphRepository) UpsertNode(ctx context.Context, projectID string, n *models.Node) error {
	n.ProjectID = projectID
	if n.Icon == "" {
		n.Icon = "circle"
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ts, err := bumpWatermark(tx, projectID)
		if err != nil {
			return err
		}
		n.UpdatedAt = ts
		return tx.Clauses(upsertConflict).Create(n).Error
	})
	return wrapPersistence(err, "save node failed")
}

func (r *graphRepository) UpsertEdge(ctx context.Context, projectID string, e *models.Edge) error {
	e.ProjectID = projectID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ts, err := bumpWatermark(tx, projectID)
		if err != nil {
			return err
		}
		e.UpdatedAt = ts
		return tx.Clauses(upsertConflict).Create(e).Error
	})
	return wrapPersistence(err, "save edge failed")
}

func (r *graphRepository) DeleteNode(ctx context.Context, projectID, id string) (*DeleteNodeResult, error) {
	out := &DeleteNodeResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := bumpWatermark(tx, projectID); err != nil {
			return err
		}
		res := tx.Where("project_id = ? AND id = ?", projectID, id).Delete(&models.Node{})
		if res.Error != nil {
			return res.Error
		}
		out.NodesDeleted = res.RowsAffected
		// Cascade: no edge may keep referencing the removed node.
		res = tx.Where("project_id = ? AND (source = ? OR target = ?)", projectID, id, id).Delete(&models.Edge{})
		if res.Error != nil {
			return res.Error
		}
		out.EdgesDeleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, wrapPersistence(err, "delete node failed")
	}
	return out, nil
}

func (r *graphRepository) DeleteEdge(ctx context.Context, projectID, id string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := bumpWatermark(tx, projectID); err != nil {
			return err
		}
		res := tx.Where("project_id = ? AND id = ?", projectID, id).Delete(&models.Edge{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, wrapPersistence(err, "delete edge failed")
	}
	return deleted, nil
}

func (r *graphRepository) BulkUpsertNodes(ctx context.Context, projectID string, nodes []models.Node) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ts, err := bumpWatermark(tx, projectID)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return nil
		}
		for i := range nodes {
			nodes[i].ProjectID = projectID
			nodes[i].UpdatedAt = ts
			if nodes[i].Icon == "" {
				nodes[i].Icon = "circle"
			}
		}
		return tx.Clauses(upsertConflict).Create(&nodes).Error
	})
	return wrapPersistence(err, "bulk save nodes failed")
}

func (r *graphRepository) BulkUpsertEdges(ctx context.Context, projectID string, edges []models.Edge) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ts, err := bumpWatermark(tx, projectID)
		if err != nil {
			return err
		}
		if len(edges) == 0 {
			return nil
		}
		for i := range edges {
			edges[i].ProjectID = projectID
			edges[i].UpdatedAt = ts
		}
		return tx.Clauses(upsertConflict).Create(&edges).Error
	})
	return wrapPersistence(err, "bulk save edges failed")
}

func (r *graphRepository) ChangesSince(ctx context.Context, projectID string, since int64) (*models.GraphData, int64, error) {
	// The watermark is read before the rows: a write that lands in between
	// carries a timestamp above the returned watermark, so the client's
	// next poll re-fetches it instead of skipping it.
	wm, err := r.Watermark(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	data := &models.GraphData{Nodes: []models.Node{}, Edges: []models.Edge{}}
	db := r.db.WithContext(ctx)
	if err := db.Where("project_id = ? AND updated_at > ?", projectID, since).Find(&data.Nodes).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "get changed nodes failed")
	}
	if err := db.Where("project_id = ? AND updated_at > ?", projectID, since).Find(&data.Edges).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "get changed edges failed")
	}
	return data, wm, nil
}

func (r *graphRepository) Watermark(ctx context.Context, projectID string) (int64, error) {
	var st models.SyncStatus
	if err := r.db.WithContext(ctx).First(&st, "project_id = ?", projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, appErr.New(appErr.CodeNotFound, "project not found")
		}
		return 0, appErr.Wrap(err, appErr.CodeInternal, "get watermark failed")
	}
	return st.LastSync, nil
}

func (r *graphRepository) Clear(ctx context.Context, projectID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := bumpWatermark(tx, projectID); err != nil {
			return err
		}
		// FK ordering: edges first.
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Edge{}).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ?", projectID).Delete(&models.Node{}).Error
	})
	return wrapPersistence(err, "clear project failed")
}

func (r *graphRepository) Import(ctx context.Context, projectID string, data *models.GraphData) (int, int, error) {
	var nodeCount, edgeCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ts, err := bumpWatermark(tx, projectID)
		if err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Edge{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Node{}).Error; err != nil {
			return err
		}
		if len(data.Nodes) > 0 {
			nodes := make([]models.Node, len(data.Nodes))
			copy(nodes, data.Nodes)
			for i := range nodes {
				nodes[i].ProjectID = projectID
				nodes[i].UpdatedAt = ts
				if nodes[i].Icon == "" {
					nodes[i].Icon = "circle"
				}
			}
			if err := tx.Clauses(upsertConflict).Create(&nodes).Error; err != nil {
				return err
			}
			nodeCount = len(nodes)
		}
		if len(data.Edges) > 0 {
			edges := make([]models.Edge, len(data.Edges))
			copy(edges, data.Edges)
			for i := range edges {
				edges[i].ProjectID = projectID
				edges[i].UpdatedAt = ts
			}
			if err := tx.Clauses(upsertConflict).Create(&edges).Error; err != nil {
				return err
			}
			edgeCount = len(edges)
		}
		return nil
	})
	if err != nil {
		return 0, 0, wrapPersistence(err, "import failed")
	}
	return nodeCount, edgeCount, nil
}

func wrapPersistence(err error, msg string) error {
	if err == nil {
		return nil
	}
	if appErr.IsCode(err, appErr.CodeNotFound) {
		return err
	}
	return appErr.Wrap(err, appErr.CodeInternal, msg)
}
