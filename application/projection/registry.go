// Package projection keeps derived lookup records in step with the entities
// they are computed from.
//
// Every derived kind is described by an Indexer. The Projector diffs the
// records an entity implied before a change against the records it implies
// after, and writes only the difference.
package projection

import (
	"fmt"
	"sort"

	"cms-backend/domain/keyspace"
)

// OwnerAttribute names the attribute of a unique pointer that holds the id of
// the entity owning the key.
const OwnerAttribute = "ownerId"

// Indexer computes the derived records implied by one source entity.
type Indexer interface {
	// Name identifies the indexer in logs and errors
	Name() string

	// SourceKind is the entity kind the indexer reads
	SourceKind() keyspace.Kind

	// Unique reports whether each derived key may belong to one entity only.
	// Unique records must carry OwnerAttribute.
	Unique() bool

	// Desired returns every record the entity currently implies
	Desired(scope keyspace.Scope, entity keyspace.Item) ([]keyspace.Item, error)
}

// HoldersAttribute lists, oldest first, the entities that imply a shared
// record. The last one is the owner.
const HoldersAttribute = "holders"

// SharedIndexer is implemented by indexers whose records several entities
// may imply at once, such as two resources imported from the same URL. The
// latest writer owns the record. When the owner lets go, the record passes to
// the most recent remaining holder that still implies it, and is deleted
// only when no holder does.
type SharedIndexer interface {
	Indexer

	// HolderKey addresses the source entity named by a holder id
	HolderKey(scope keyspace.Scope, id string) (keyspace.Key, error)
}

// Registry maps entity kinds to their indexers.
type Registry struct {
	byKind map[keyspace.Kind][]Indexer
	names  map[string]struct{}
}

// NewRegistry creates a registry holding the given indexers.
func NewRegistry(indexers ...Indexer) (*Registry, error) {
	r := &Registry{
		byKind: make(map[keyspace.Kind][]Indexer),
		names:  make(map[string]struct{}),
	}
	for _, ix := range indexers {
		if err := r.Register(ix); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns the registry of every built-in indexer.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		CategoryMembershipIndexer{},
		CouponCodeIndexer{},
		FormSlugIndexer{},
		MediaMapIndexer{},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds an indexer. Names must be unique.
func (r *Registry) Register(ix Indexer) error {
	if _, dup := r.names[ix.Name()]; dup {
		return fmt.Errorf("indexer %q already registered", ix.Name())
	}
	r.names[ix.Name()] = struct{}{}
	r.byKind[ix.SourceKind()] = append(r.byKind[ix.SourceKind()], ix)
	return nil
}

// For returns the indexers reading entities of kind.
func (r *Registry) For(kind keyspace.Kind) []Indexer {
	return r.byKind[kind]
}

// HasUnique reports whether any indexer of kind maintains unique keys.
func (r *Registry) HasUnique(kind keyspace.Kind) bool {
	for _, ix := range r.byKind[kind] {
		if ix.Unique() {
			return true
		}
	}
	return false
}

// HasShared reports whether any indexer of kind maintains shared records.
func (r *Registry) HasShared(kind keyspace.Kind) bool {
	for _, ix := range r.byKind[kind] {
		if _, ok := ix.(SharedIndexer); ok {
			return true
		}
	}
	return false
}

// Kinds returns the source kinds with at least one indexer, sorted.
func (r *Registry) Kinds() []keyspace.Kind {
	kinds := make([]keyspace.Kind, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
