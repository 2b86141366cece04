package projection

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cms-backend/domain/keyspace"
)

// resolveShared turns the shared records in d into plain writes. A put makes
// entityID the owner and keeps the earlier holders. A delete by a holder that
// is not the owner only drops it from the holders; a delete by the owner
// hands the record to the next holder that still implies it.
func (p *Projector) resolveShared(ctx context.Context, scope keyspace.Scope, entityID string, d diff) (diff, error) {
	out := diff{}
	for _, put := range d.puts {
		if put.shared == nil {
			out.puts = append(out.puts, put)
			continue
		}
		existing, found, err := p.lookup(ctx, put.item.Key)
		if err != nil {
			return diff{}, err
		}
		var holders []string
		if found {
			holders = holdersOf(existing)
		}
		item := put.item.Clone()
		item.Attributes[OwnerAttribute] = entityID
		item.Attributes[HoldersAttribute] = append(without(holders, entityID), entityID)
		out.puts = append(out.puts, derived{item: item})
	}

	for _, del := range d.deletes {
		if del.shared == nil {
			out.deletes = append(out.deletes, del)
			continue
		}
		existing, found, err := p.lookup(ctx, del.item.Key)
		if err != nil {
			return diff{}, err
		}
		if !found {
			continue
		}
		held := holdersOf(existing)
		remaining := without(held, entityID)

		if existing.String(OwnerAttribute) != entityID {
			if len(remaining) == len(held) {
				continue
			}
			kept := existing.Clone()
			kept.Attributes[HoldersAttribute] = remaining
			out.puts = append(out.puts, derived{item: kept})
			continue
		}

		next, err := p.successor(ctx, scope, del.shared, del.item.Key, remaining)
		if err != nil {
			return diff{}, err
		}
		if next == nil {
			out.deletes = append(out.deletes, derived{item: del.item})
			continue
		}
		p.logger.Debug("Shared record handed over",
			zap.String("key", del.item.Key.String()),
			zap.String("from", entityID),
			zap.String("to", next.String(OwnerAttribute)))
		out.puts = append(out.puts, derived{item: *next})
	}

	sortDerived(out.puts)
	sortDerived(out.deletes)
	return out, nil
}

// successor returns the record at key as written by the most recent holder
// that still implies it, or nil when none does. Holders after that one no
// longer imply the record and are dropped.
func (p *Projector) successor(ctx context.Context, scope keyspace.Scope, ix SharedIndexer, key keyspace.Key, holders []string) (*keyspace.Item, error) {
	for i := len(holders) - 1; i >= 0; i-- {
		entityKey, err := ix.HolderKey(scope, holders[i])
		if err != nil {
			return nil, err
		}
		entity, found, err := p.lookup(ctx, entityKey)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		items, err := ix.Desired(scope, entity)
		if err != nil {
			return nil, fmt.Errorf("indexer %s: %w", ix.Name(), err)
		}
		for _, it := range items {
			if it.Key != key {
				continue
			}
			next := it.Clone()
			next.Attributes[OwnerAttribute] = holders[i]
			next.Attributes[HoldersAttribute] = append([]string(nil), holders[:i+1]...)
			return &next, nil
		}
	}
	return nil, nil
}

// holdersOf reads the holders of a shared record. An owner missing from the
// list is appended.
func holdersOf(item keyspace.Item) []string {
	holders := StringList(item.Attributes[HoldersAttribute])
	if owner := item.String(OwnerAttribute); owner != "" {
		holders = append(without(holders, owner), owner)
	}
	return holders
}

func without(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != id {
			out = append(out, s)
		}
	}
	return out
}
