package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/strata/internal/election"
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/projection"
)

// ListEntities returns the visible entities of domain matching f.
func (s *Service) ListEntities(ctx context.Context, domain string, f projection.Filter) ([]projection.Entity, error) {
	v, err := s.newView(ctx)
	if err != nil {
		return nil, err
	}
	p, err := v.project(ctx, domain)
	if err != nil {
		return nil, err
	}
	out := p.List(f)
	slog.Debug("entities listed", "view", v.token, "domain", domain, "count", len(out))
	return out, nil
}

// GetEntity returns the visible entity containing id, which may be any of
// its records or its key. Hidden entities yield ErrNotFound; an id on a
// cyclic chain yields the malformed-chain error.
func (s *Service) GetEntity(ctx context.Context, domain, id string) (projection.Entity, error) {
	v, err := s.newView(ctx)
	if err != nil {
		return projection.Entity{}, err
	}
	return v.find(ctx, domain, id)
}

func (v *view) find(ctx context.Context, domain, id string) (projection.Entity, error) {
	p, err := v.project(ctx, domain)
	if err != nil {
		return projection.Entity{}, err
	}
	e, ok, err := p.Find(id)
	if err != nil {
		return projection.Entity{}, err
	}
	if !ok {
		return projection.Entity{}, fmt.Errorf("%w: %s/%s", ErrNotFound, domain, id)
	}
	return e, nil
}

// History returns the records of the entity containing id in log order.
func (s *Service) History(ctx context.Context, domain, id string) ([]ir.Record, error) {
	e, err := s.GetEntity(ctx, domain, id)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(e.Members)
	slices.SortStableFunc(out, func(a, b ir.Record) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return out, nil
}

// Publish appends a new entity to domain. The content type is taken from
// fields when the domain owns it, otherwise the domain's first type is used.
func (s *Service) Publish(ctx context.Context, domain, author string, fields ir.Object) (ir.Record, error) {
	pol, ok := s.policies.Lookup(domain)
	if !ok {
		return ir.Record{}, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	typ := fields.Str(ir.FieldType)
	if !pol.Spec.Owns(typ) {
		typ = pol.Spec.Types[0]
	}

	rec, err := s.append(ctx, ir.Draft{
		Author:  author,
		Kind:    ir.KindContent,
		Payload: ir.NewContent(typ, "", fields),
	})
	if err != nil {
		return ir.Record{}, fmt.Errorf("publishing to %s: %w", domain, err)
	}
	return rec, nil
}

// PublishEdit supersedes the current tip of the entity containing
// existingID with fields.
//
// Only the entity's owner may edit it. In ranked domains a missing status
// is carried over from the tip and a lower status is rejected with
// ErrStatusRegression; in governed domains status changes must follow the
// proposal lifecycle. When the domain sets tombstone_on_edit the old tip is
// tombstoned after the edit is written.
func (s *Service) PublishEdit(ctx context.Context, domain, author, existingID string, fields ir.Object) (ir.Record, error) {
	v, err := s.newView(ctx)
	if err != nil {
		return ir.Record{}, err
	}
	e, err := v.find(ctx, domain, existingID)
	if err != nil {
		return ir.Record{}, err
	}
	if owner := e.Owner(); owner != author {
		return ir.Record{}, &PermissionError{Action: "edit", Author: author, Owner: owner, Entity: e.Key}
	}

	pol := v.projections[domain].Policy
	fields = fields.Clone()
	if sf := pol.Spec.StatusField; sf != "" {
		cur := e.Fields().Str(sf)
		next := fields.Str(sf)
		if next == "" && cur != "" {
			fields[sf] = ir.String(cur)
			next = cur
		}
		if pol.Selector.Ranked() && pol.Selector.Ranks.Rank(next) < pol.Selector.Ranks.Rank(cur) {
			return ir.Record{}, fmt.Errorf("%w: %s -> %s", ErrStatusRegression, cur, next)
		}
		if pol.Spec.Governance != nil && next != cur {
			if err := election.Transition(election.State(cur), election.State(next)); err != nil {
				return ir.Record{}, err
			}
		}
	}

	typ := fields.Str(ir.FieldType)
	if !pol.Spec.Owns(typ) {
		tip, _ := e.Tip.Content()
		typ = tip.Type
	}

	rec, err := s.append(ctx, ir.Draft{
		Author:  author,
		Kind:    ir.KindContent,
		Payload: ir.NewContent(typ, e.Tip.ID, fields),
	})
	if err != nil {
		return ir.Record{}, fmt.Errorf("editing %s/%s: %w", domain, e.Key, err)
	}

	if pol.Spec.TombstoneOnEdit {
		if _, err := s.append(ctx, ir.Draft{
			Author:  author,
			Kind:    ir.KindTombstone,
			Payload: ir.NewTombstone(e.Tip.ID),
		}); err != nil {
			return rec, fmt.Errorf("tombstoning replaced tip %s: %w", e.Tip.ID, err)
		}
	}
	return rec, nil
}

// DeleteEntity tombstones the current tip of the entity containing id.
// Only the owner may delete.
func (s *Service) DeleteEntity(ctx context.Context, domain, author, id string) (ir.Record, error) {
	v, err := s.newView(ctx)
	if err != nil {
		return ir.Record{}, err
	}
	e, err := v.find(ctx, domain, id)
	if err != nil {
		return ir.Record{}, err
	}
	if owner := e.Owner(); owner != author {
		return ir.Record{}, &PermissionError{Action: "delete", Author: author, Owner: owner, Entity: e.Key}
	}

	rec, err := s.append(ctx, ir.Draft{
		Author:  author,
		Kind:    ir.KindTombstone,
		Payload: ir.NewTombstone(e.Tip.ID),
	})
	if err != nil {
		return ir.Record{}, fmt.Errorf("deleting %s/%s: %w", domain, e.Key, err)
	}
	return rec, nil
}
