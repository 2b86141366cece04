package services

import (
	"context"

	"go.uber.org/zap"

	"cms-backend/application/collector"
	"cms-backend/domain/core/entities"
	"cms-backend/domain/keyspace"
)

// ContentService reads content nodes for the graph builder and the listing
// query. It never writes: content versions are owned by the editor service.
type ContentService struct {
	collector *collector.Collector
	logger    *zap.Logger
}

// NewContentService creates a new content service
func NewContentService(coll *collector.Collector, logger *zap.Logger) *ContentService {
	return &ContentService{collector: coll, logger: logger}
}

// LatestContent returns the LATEST record of every content node in scope.
// Version snapshots are skipped. A record that cannot be decoded is logged
// and skipped so one bad node does not hide the rest of the site.
func (s *ContentService) LatestContent(ctx context.Context, scope keyspace.Scope) ([]entities.ContentNode, error) {
	var nodes []entities.ContentNode
	for item, err := range s.collector.Scan(ctx, scope, keyspace.PrefixFor(keyspace.KindContent)) {
		if err != nil {
			return nil, err
		}
		if !keyspace.IsLatestContent(item.Key.Sort) {
			continue
		}
		node, err := entities.ContentNodeFromItem(item)
		if err != nil {
			s.logger.Warn("Skipping undecodable content record",
				zap.String("scope", scope.String()),
				zap.String("key", item.Key.Sort),
				zap.Error(err))
			continue
		}
		nodes = append(nodes, node)
	}

	s.logger.Debug("Loaded content nodes",
		zap.String("scope", scope.String()),
		zap.Int("count", len(nodes)))
	return nodes, nil
}
