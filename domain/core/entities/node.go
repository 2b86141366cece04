package entities

import (
	"strings"
	"time"

	"cms-backend/domain/core/valueobjects"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

// NodeStatus represents the publication state of a content node
type NodeStatus string

const (
	StatusDraft     NodeStatus = "draft"
	StatusPublished NodeStatus = "published"
	StatusArchived  NodeStatus = "archived"
)

// ParseNodeStatus reads a status case-insensitively. Unknown values are
// returned lower-cased as-is.
func ParseNodeStatus(raw string) NodeStatus {
	return NodeStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// ContentNode is the LATEST version of a page: its identity, public path,
// status, tags and raw block tree.
type ContentNode struct {
	ID        string
	Title     string
	Slug      valueobjects.Slug
	Status    NodeStatus
	Tags      []string
	CreatedAt time.Time
	// Blocks is the stored block tree, decoded lazily by the link graph.
	Blocks any
}

// IsPublished reports whether the node is live.
func (n ContentNode) IsPublished() bool { return n.Status == StatusPublished }

// IsTraversable reports whether the node's links count towards the graph.
func (n ContentNode) IsTraversable() bool {
	return n.Status == StatusPublished || n.Status == StatusDraft
}

// HasTag reports whether the node carries tag.
func (n ContentNode) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ContentNodeFromItem reads a CONTENT record.
func ContentNodeFromItem(item keyspace.Item) (ContentNode, error) {
	if item.Key.Kind() != keyspace.KindContent {
		return ContentNode{}, pkgerrors.NewValidationErrorf("%s is not a content record", item.Key.Sort)
	}
	id := item.String("nodeId")
	if id == "" {
		id = item.Key.EntityID()
	}

	node := ContentNode{
		ID:        id,
		Title:     item.String("title"),
		Slug:      valueobjects.NewSlug(item.String("slug")),
		Status:    ParseNodeStatus(item.String("status")),
		Tags:      stringSlice(item.Attributes["tags"]),
		CreatedAt: parseTime(item.Attributes["createdAt"]),
		Blocks:    item.Attributes["blocks"],
	}
	if node.Blocks == nil {
		node.Blocks = item.Attributes["content"]
	}
	return node, nil
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// parseTime accepts RFC 3339 strings and Unix epoch milliseconds. Anything
// else yields the zero time, which sorts last in newest-first order.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	case int:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}
