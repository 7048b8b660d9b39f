package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/graphstudio/engine/internal/models"
	"github.com/graphstudio/engine/internal/realtime"
	"github.com/graphstudio/engine/internal/repository"
	"github.com/graphstudio/engine/pkg/logger"
)

// GraphService exposes the persistence gateway scoped to an
// already-resolved project and fans every successful mutation out to the
// project's realtime room. Callers pass the project id attached by the
// auth middleware, never a client-supplied one.
type GraphService interface {
	Graph(ctx context.Context, projectID string) (*models.GraphData, error)
	Nodes(ctx context.Context, projectID string) ([]models.Node, error)
	Edges(ctx context.Context, projectID string) ([]models.Edge, error)

	SaveNode(ctx context.Context, projectID string, n *models.Node) error
	DeleteNode(ctx context.Context, projectID, id string) (*repository.DeleteNodeResult, error)
	SaveEdge(ctx context.Context, projectID string, e *models.Edge) error
	DeleteEdge(ctx context.Context, projectID, id string) (int64, error)

	ChangesSince(ctx context.Context, projectID string, since int64) (*models.GraphData, int64, error)
	Watermark(ctx context.Context, projectID string) (int64, error)

	Import(ctx context.Context, projectID string, data *models.GraphData) (nodeCount, edgeCount int, err error)
	Clear(ctx context.Context, projectID string) error
}

type graphService struct {
	graphRepo repository.GraphRepository
	broadcast Broadcaster
}

func NewGraphService(graphRepo repository.GraphRepository, b Broadcaster) GraphService {
	return &graphService{graphRepo: graphRepo, broadcast: b}
}

var _ GraphService = (*graphService)(nil)

func (s *graphService) Graph(ctx context.Context, projectID string) (*models.GraphData, error) {
	nodes, err := s.graphRepo.GetNodes(ctx, projectID)
	if err != nil {
		return nil, err
	}
	edges, err := s.graphRepo.GetEdges(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &models.GraphData{Nodes: nodes, Edges: edges}, nil
}

func (s *graphService) Nodes(ctx context.Context, projectID string) ([]models.Node, error) {
	return s.graphRepo.GetNodes(ctx, projectID)
}

func (s *graphService) Edges(ctx context.Context, projectID string) ([]models.Edge, error) {
	return s.graphRepo.GetEdges(ctx, projectID)
}

func (s *graphService) SaveNode(ctx context.Context, projectID string, n *models.Node) error {
	if err := s.graphRepo.UpsertNode(ctx, projectID, n); err != nil {
		return err
	}
	s.emit(projectID, realtime.EventNodeUpdated, n)
	return nil
}

func (s *graphService) DeleteNode(ctx context.Context, projectID, id string) (*repository.DeleteNodeResult, error) {
	res, err := s.graphRepo.DeleteNode(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	logger.L().Debug("node deleted",
		zap.String("project_id", projectID),
		zap.String("node_id", id),
		zap.Int64("edges_deleted", res.EdgesDeleted),
	)
	s.emit(projectID, realtime.EventNodeDeleted, map[string]string{"id": id})
	return res, nil
}

func (s *graphService) SaveEdge(ctx context.Context, projectID string, e *models.Edge) error {
	if err := s.graphRepo.UpsertEdge(ctx, projectID, e); err != nil {
		return err
	}
	s.emit(projectID, realtime.EventEdgeUpdated, e)
	return nil
}

func (s *graphService) DeleteEdge(ctx context.Context, projectID, id string) (int64, error) {
	deleted, err := s.graphRepo.DeleteEdge(ctx, projectID, id)
	if err != nil {
		return 0, err
	}
	s.emit(projectID, realtime.EventEdgeDeleted, map[string]string{"id": id})
	return deleted, nil
}

func (s *graphService) ChangesSince(ctx context.Context, projectID string, since int64) (*models.GraphData, int64, error) {
	return s.graphRepo.ChangesSince(ctx, projectID, since)
}

func (s *graphService) Watermark(ctx context.Context, projectID string) (int64, error) {
	return s.graphRepo.Watermark(ctx, projectID)
}

func (s *graphService) Import(ctx context.Context, projectID string, data *models.GraphData) (int, int, error) {
	nodeCount, edgeCount, err := s.graphRepo.Import(ctx, projectID, data)
	if err != nil {
		return 0, 0, err
	}
	logger.L().Info("data imported",
		zap.String("project_id", projectID),
		zap.Int("nodes", nodeCount),
		zap.Int("edges", edgeCount),
	)
	s.emit(projectID, realtime.EventDataImported, data)
	return nodeCount, edgeCount, nil
}

func (s *graphService) Clear(ctx context.Context, projectID string) error {
	if err := s.graphRepo.Clear(ctx, projectID); err != nil {
		return err
	}
	logger.L().Info("project cleared", zap.String("project_id", projectID))
	s.emit(projectID, realtime.EventDataCleared, map[string]any{})
	return nil
}

func (s *graphService) emit(projectID, event string, payload any) {
	if s.broadcast != nil {
		s.broadcast.BroadcastToProject(projectID, event, payload)
	}
}
