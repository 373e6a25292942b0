package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zhangyunhao116/skipmap"

	"github.com/roach88/strata/internal/election"
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/policy"
	"github.com/roach88/strata/internal/projection"
)

// LogSource is the append-only log the service projects.
// *store.Store implements it.
type LogSource interface {
	Scan(ctx context.Context) ([]ir.Record, error)
	Append(ctx context.Context, d ir.Draft) (ir.Record, error)
	Head(ctx context.Context) (int64, error)
}

// Service runs the application operations over one log and policy set.
//
// Thread-safety: Service is safe for concurrent use. Reads never block each
// other; appends are not serialized and concurrent edits of one entity are
// resolved by tip selection.
type Service struct {
	log       LogSource
	policies  *policy.Registry
	blobs     projection.BlobProber
	eval      election.Evaluator
	tokens    TokenGenerator
	sweeper   string
	snapshots *skipmap.OrderedMap[int64, *projection.Snapshot]
}

// Option configures a Service.
type Option func(*Service)

// WithBlobs sets the blob existence prober.
func WithBlobs(b projection.BlobProber) Option {
	return func(s *Service) { s.blobs = b }
}

// WithReputation sets the reputation source for election tie-breaks.
func WithReputation(r election.ReputationSource) Option {
	return func(s *Service) { s.eval.Reputation = r }
}

// WithActivity sets the first-activity source for seniority tie-breaks.
func WithActivity(a election.ActivitySource) Option {
	return func(s *Service) { s.eval.Activity = a }
}

// WithAuthority sets the identity that decides DICTATORSHIP votes. Sweep
// resolutions are authored by the authority when one is set.
func WithAuthority(author string) Option {
	return func(s *Service) {
		s.eval.Authority = author
		if author != "" {
			s.sweeper = author
		}
	}
}

// WithTokenGenerator sets the correlation token generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Service) { s.tokens = g }
}

// DefaultSweeper authors sweep resolutions when no authority is configured.
const DefaultSweeper = "strata"

// New creates a service. When log also implements the blob, reputation or
// activity capabilities (as *store.Store does) they are used by default.
func New(log LogSource, policies *policy.Registry, opts ...Option) *Service {
	s := &Service{
		log:       log,
		policies:  policies,
		tokens:    UUIDv7Generator{},
		sweeper:   DefaultSweeper,
		snapshots: skipmap.New[int64, *projection.Snapshot](),
	}
	if b, ok := log.(projection.BlobProber); ok {
		s.blobs = b
	}
	if r, ok := log.(election.ReputationSource); ok {
		s.eval.Reputation = r
	}
	if a, ok := log.(election.ActivitySource); ok {
		s.eval.Activity = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policies returns the service's policy registry.
func (s *Service) Policies() *policy.Registry {
	return s.policies
}

// snapshot returns a snapshot at least as new as the current head.
func (s *Service) snapshot(ctx context.Context) (*projection.Snapshot, error) {
	head, err := s.log.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading log head: %w", err)
	}
	if snap, ok := s.snapshots.Load(head); ok {
		return snap, nil
	}

	records, err := s.log.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning log: %w", err)
	}
	snap := projection.NewSnapshot(records)

	seq := int64(0)
	if n := len(records); n > 0 {
		seq = records[n-1].Seq
	}
	s.snapshots.Range(func(k int64, _ *projection.Snapshot) bool {
		if k < seq {
			s.snapshots.Delete(k)
		}
		return true
	})
	s.snapshots.Store(seq, snap)
	return snap, nil
}

// invalidate drops every cached snapshot.
func (s *Service) invalidate() {
	s.snapshots.Range(func(k int64, _ *projection.Snapshot) bool {
		s.snapshots.Delete(k)
		return true
	})
}

// append writes a draft and invalidates the snapshot cache.
func (s *Service) append(ctx context.Context, d ir.Draft) (ir.Record, error) {
	rec, err := s.log.Append(ctx, d)
	s.invalidate()
	if err != nil {
		return ir.Record{}, err
	}
	slog.Info("record appended",
		"id", rec.ID,
		"author", rec.Author,
		"kind", rec.Kind,
		"seq", rec.Seq,
	)
	return rec, nil
}

// view is one view computation: a snapshot, its per-domain projections and
// a blob memo shared by all of them.
type view struct {
	svc         *Service
	token       string
	snap        *projection.Snapshot
	blobs       *projection.BlobMemo
	projections map[string]*projection.Projection
}

func (s *Service) newView(ctx context.Context) (*view, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var memo *projection.BlobMemo
	if s.blobs != nil {
		memo = projection.NewBlobMemo(s.blobs)
	}
	return &view{
		svc:         s,
		token:       s.tokens.Generate(),
		snap:        snap,
		blobs:       memo,
		projections: make(map[string]*projection.Projection),
	}, nil
}

// project returns the projection of domain, projecting cascade parents
// first. The policy registry rejects parent cycles, so recursion ends.
func (v *view) project(ctx context.Context, domain string) (*projection.Projection, error) {
	if p, ok := v.projections[domain]; ok {
		return p, nil
	}
	pol, ok := v.svc.policies.Lookup(domain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	opts := projection.Options{Blobs: v.blobs}
	if parent := pol.Spec.ParentDomain; parent != "" {
		pp, err := v.project(ctx, parent)
		if err != nil {
			return nil, err
		}
		opts.Parents = pp
	}

	p, err := projection.Project(ctx, v.snap, pol, opts)
	if err != nil {
		slog.Error("projection failed", "view", v.token, "domain", domain, "error", err)
		return nil, fmt.Errorf("projecting %s: %w", domain, err)
	}
	slog.Debug("domain projected",
		"view", v.token,
		"domain", domain,
		"entities", len(p.Entities),
		"excluded", len(p.Excluded),
	)
	v.projections[domain] = p
	return p, nil
}

// community counts distinct authors of content records in the snapshot.
func (v *view) community() int64 {
	seen := make(map[string]struct{})
	for _, rec := range v.snap.Records {
		if _, ok := rec.Content(); ok {
			seen[rec.Author] = struct{}{}
		}
	}
	return int64(len(seen))
}
