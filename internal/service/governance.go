package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/strata/internal/election"
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/projection"
)

// ResolveElection evaluates an election over explicit candidates.
func (s *Service) ResolveElection(ctx context.Context, method election.Method, candidates []election.Candidate, electorate int64) (election.Result, error) {
	return s.eval.Elect(ctx, method, candidates, electorate)
}

// Election evaluates the election key of a governed candidature domain.
//
// Candidates are the visible entities whose group field equals key; each
// receives one vote per voter whose latest ballot targets it with a choice
// other than "no". The electorate is the policy default, or the number of
// distinct content authors when the policy sets none.
func (s *Service) Election(ctx context.Context, domain, key string, method election.Method) (election.Result, error) {
	v, err := s.newView(ctx)
	if err != nil {
		return election.Result{}, err
	}
	p, err := v.project(ctx, domain)
	if err != nil {
		return election.Result{}, err
	}
	gov := p.Policy.Spec.Governance
	if gov == nil || gov.GroupField == "" {
		return election.Result{}, fmt.Errorf("%w: %s", ErrNotGoverned, domain)
	}

	ballots, err := v.ballots(ctx, gov)
	if err != nil {
		return election.Result{}, err
	}

	var candidates []election.Candidate
	for _, e := range p.Entities {
		if t, _ := e.Fields().Text(gov.GroupField); t != key {
			continue
		}
		c := election.Candidate{
			ID:        e.Key,
			Author:    e.Owner(),
			Nominated: e.Members[0].Timestamp,
		}
		for _, b := range ballots.forEntity(e, 0) {
			if b.Choice != election.ChoiceNo {
				c.Votes++
			}
		}
		candidates = append(candidates, c)
	}

	electorate := gov.Electorate
	if electorate == 0 {
		electorate = v.community()
	}

	res, err := s.eval.Elect(ctx, method, candidates, electorate)
	if err != nil {
		return res, err
	}
	slog.Info("election evaluated",
		"view", v.token,
		"domain", domain,
		"election", key,
		"method", method,
		"candidates", len(candidates),
		"outcome", res.Outcome,
	)
	return res, nil
}

// Proposals returns the governed entities of domain as proposals.
func (s *Service) Proposals(ctx context.Context, domain string) ([]election.Proposal, error) {
	v, err := s.newView(ctx)
	if err != nil {
		return nil, err
	}
	props, _, err := v.proposals(ctx, domain)
	return props, err
}

// Sweep resolves every proposal of domain pending past its deadline at now
// (Unix ms) and appends the resolutions as status edits.
//
// Resolved proposals are terminal and skipped by later sweeps, so repeated
// or concurrent sweeps converge on the same states.
func (s *Service) Sweep(ctx context.Context, domain string, now int64) ([]election.Resolution, error) {
	v, err := s.newView(ctx)
	if err != nil {
		return nil, err
	}
	props, gov, err := v.proposals(ctx, domain)
	if err != nil {
		return nil, err
	}
	ballots, err := v.ballots(ctx, gov)
	if err != nil {
		return nil, err
	}

	p := v.projections[domain]
	byProposal := make(map[string][]election.Ballot, len(props))
	for _, prop := range props {
		e, ok, err := p.Find(prop.ID)
		if err != nil || !ok {
			continue
		}
		byProposal[prop.ID] = ballots.forEntity(e, prop.Deadline)
	}

	resolutions, err := s.eval.Sweep(ctx, now, props, byProposal)
	if err != nil {
		return resolutions, err
	}

	statusField := p.Policy.Spec.StatusField
	for _, r := range resolutions {
		e, _, _ := p.Find(r.Proposal.ID)
		fields := e.Fields().Clone()
		fields[statusField] = ir.String(string(r.To))
		tip, _ := e.Tip.Content()

		if _, err := s.append(ctx, ir.Draft{
			Author:  s.sweeper,
			Kind:    ir.KindContent,
			Payload: ir.NewContent(tip.Type, r.Proposal.TipID, fields),
		}); err != nil {
			return resolutions, fmt.Errorf("recording resolution of %s: %w", r.Proposal.ID, err)
		}
		slog.Info("proposal resolved",
			"view", v.token,
			"domain", domain,
			"proposal", r.Proposal.ID,
			"from", r.Proposal.State,
			"to", r.To,
			"reason", r.Reason,
		)
	}
	return resolutions, nil
}

func (v *view) proposals(ctx context.Context, domain string) ([]election.Proposal, *ir.GovernanceSpec, error) {
	p, err := v.project(ctx, domain)
	if err != nil {
		return nil, nil, err
	}
	spec := p.Policy.Spec
	if spec.Governance == nil || spec.StatusField == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotGoverned, domain)
	}
	gov := spec.Governance

	community := int64(-1)
	out := make([]election.Proposal, 0, len(p.Entities))
	for _, e := range p.Entities {
		fields := e.Fields()
		prop := election.Proposal{
			ID:     e.Key,
			TipID:  e.Tip.ID,
			Author: e.Owner(),
			State:  election.State(fields.Str(spec.StatusField)),
			Method: election.MethodDemocracy,
		}
		if prop.State == "" {
			prop.State = election.StateOpen
		}
		if gov.MethodField != "" {
			if m, err := election.ParseMethod(fields.Str(gov.MethodField)); err == nil {
				prop.Method = m
			}
		}
		if gov.DeadlineField != "" {
			prop.Deadline, _ = fields.Int64(gov.DeadlineField)
		}
		if n, ok := fields.Int64("electorate"); ok && n > 0 {
			prop.Electorate = n
		} else if gov.Electorate > 0 {
			prop.Electorate = gov.Electorate
		} else {
			if community < 0 {
				community = v.community()
			}
			prop.Electorate = community
		}
		out = append(out, prop)
	}
	return out, gov, nil
}

// ballotBox indexes every ballot ever cast by the id it targets. A voter
// may hold several ballots per target when they change their vote.
type ballotBox map[string][]election.Ballot

func (v *view) ballots(ctx context.Context, gov *ir.GovernanceSpec) (ballotBox, error) {
	votes, err := v.project(ctx, gov.VoteDomain)
	if err != nil {
		return nil, err
	}
	choice := gov.ChoiceField
	if choice == "" {
		choice = "choice"
	}

	box := make(ballotBox)
	for _, e := range votes.Entities {
		for _, m := range e.Members {
			fields := m.Fields()
			target := fields.Str(ir.FieldTarget)
			if target == "" {
				continue
			}
			box[target] = append(box[target], election.Ballot{
				Voter:     m.Author,
				Choice:    election.Choice(strings.ToLower(fields.Str(choice))),
				Timestamp: m.Timestamp,
			})
		}
	}
	return box, nil
}

// forEntity returns ballots targeting the entity's key or any of its
// records, at most one per voter: the latest cast no later than deadline
// (0 accepts all).
func (b ballotBox) forEntity(e projection.Entity, deadline int64) []election.Ballot {
	latest := make(map[string]election.Ballot)
	var order []string
	add := func(id string) {
		for _, bal := range b[id] {
			if deadline > 0 && bal.Timestamp > deadline {
				continue
			}
			prev, seen := latest[bal.Voter]
			if !seen {
				order = append(order, bal.Voter)
			}
			if !seen || bal.Timestamp > prev.Timestamp {
				latest[bal.Voter] = bal
			}
		}
	}
	add(e.Key)
	for _, m := range e.Members {
		if m.ID != e.Key {
			add(m.ID)
		}
	}

	out := make([]election.Ballot, len(order))
	for i, voter := range order {
		out[i] = latest[voter]
	}
	return out
}
