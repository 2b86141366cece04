package linkgraph

import "sort"

// Node is a content node in the graph with its link counts. Incoming
// includes implicit links from the home page, contact page and navigation.
type Node struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Status   string `json:"status"`
	Incoming int    `json:"incoming"`
	Outgoing int    `json:"outgoing"`
}

// Edge is a content-authored link from one node to another.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// EdgeID identifies the edge between source and target.
func EdgeID(source, target string) string {
	return source + "-" + target
}

// Orphan is a published page nothing links to.
type Orphan struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// TraversalFailure records a node whose block tree could not be read.
type TraversalFailure struct {
	NodeID string `json:"nodeId"`
	Slug   string `json:"slug"`
	Reason string `json:"reason"`
}

// Result is the graph of one build. Every list is sorted, so two builds over
// the same data encode identically.
type Result struct {
	Nodes    []Node             `json:"nodes"`
	Edges    []Edge             `json:"edges"`
	Orphans  []Orphan           `json:"orphans"`
	Failures []TraversalFailure `json:"failures,omitempty"`
}

func (r *Result) sort() {
	if r.Nodes == nil {
		r.Nodes = []Node{}
	}
	if r.Edges == nil {
		r.Edges = []Edge{}
	}
	if r.Orphans == nil {
		r.Orphans = []Orphan{}
	}

	sort.Slice(r.Nodes, func(i, j int) bool {
		if r.Nodes[i].Slug != r.Nodes[j].Slug {
			return r.Nodes[i].Slug < r.Nodes[j].Slug
		}
		return r.Nodes[i].ID < r.Nodes[j].ID
	})
	sort.Slice(r.Edges, func(i, j int) bool {
		if r.Edges[i].Source != r.Edges[j].Source {
			return r.Edges[i].Source < r.Edges[j].Source
		}
		return r.Edges[i].Target < r.Edges[j].Target
	})
	sort.Slice(r.Orphans, func(i, j int) bool {
		if r.Orphans[i].Slug != r.Orphans[j].Slug {
			return r.Orphans[i].Slug < r.Orphans[j].Slug
		}
		return r.Orphans[i].ID < r.Orphans[j].ID
	})
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].NodeID < r.Failures[j].NodeID })
}
