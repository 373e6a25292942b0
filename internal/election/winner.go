package election

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// ReputationSource supplies reputation scores.
type ReputationSource interface {
	ReputationScore(ctx context.Context, author string) (int64, error)
}

// ActivitySource supplies first-activity timestamps. ok is false for an
// author with no recorded activity.
type ActivitySource interface {
	FirstActivity(ctx context.Context, author string) (ts int64, ok bool, err error)
}

// Candidate is one nominee of an election.
type Candidate struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Nominated int64  `json:"nominated"` // Nomination timestamp
	Votes     int64  `json:"votes"`
}

// Standing is a candidate with its tie-break inputs, as ranked.
type Standing struct {
	Candidate
	Reputation    int64 `json:"reputation"`
	FirstActivity int64 `json:"first_activity,omitempty"`
	KnownActivity bool  `json:"known_activity"`
}

// Outcome classifies an election result.
type Outcome string

const (
	// OutcomeDecided means Winner is set.
	OutcomeDecided Outcome = "DECIDED"

	// OutcomeOpen means no candidate has met the threshold yet.
	OutcomeOpen Outcome = "OPEN"

	// OutcomeAnarchy means there was nobody to elect.
	OutcomeAnarchy Outcome = "ANARCHY"
)

// Result is the evaluation of one election.
type Result struct {
	Method     Method     `json:"method"`
	Outcome    Outcome    `json:"outcome"`
	Winner     *Standing  `json:"winner,omitempty"`
	Required   int64      `json:"required"`
	Electorate int64      `json:"electorate"`
	Standings  []Standing `json:"standings"`
}

// Evaluator resolves elections and proposals.
type Evaluator struct {
	Reputation ReputationSource // nil scores everyone 0
	Activity   ActivitySource   // nil treats every account age as unknown
	Authority  string           // Identity that decides DICTATORSHIP votes
}

// Elect picks the winner among candidates.
//
// Ranking cascades through vote count (desc), reputation (desc), first
// activity (asc, unknown last), nomination time (asc) and id (asc); each
// comparator only breaks ties left by the previous one. KARMATOCRACY starts
// the cascade at reputation.
//
// Special cases, none of them errors:
//   - no candidates: OutcomeAnarchy
//   - electorate 0: the most recently nominated candidate wins, Required 0
//   - DICTATORSHIP: the best-ranked candidate put forward by the authority
//     wins; without one the election stays open
//   - counted methods: the leader wins only at or above the threshold
func (e Evaluator) Elect(ctx context.Context, method Method, candidates []Candidate, electorate int64) (Result, error) {
	res := Result{Method: method, Electorate: electorate, Outcome: OutcomeOpen}
	if _, err := ParseMethod(string(method)); err != nil {
		return res, err
	}
	if len(candidates) == 0 {
		res.Outcome = OutcomeAnarchy
		return res, nil
	}

	standings, err := e.standings(ctx, candidates)
	if err != nil {
		return res, err
	}

	if electorate <= 0 {
		slices.SortStableFunc(standings, byNomination)
		res.Standings = standings
		res.Outcome = OutcomeDecided
		res.Winner = &res.Standings[0]
		return res, nil
	}

	if method == MethodKarmatocracy {
		slices.SortStableFunc(standings, byReputation)
	} else {
		slices.SortStableFunc(standings, byVotes)
	}
	res.Standings = standings

	switch {
	case method == MethodDictatorship:
		for i := range res.Standings {
			if e.Authority != "" && res.Standings[i].Author == e.Authority {
				res.Outcome = OutcomeDecided
				res.Winner = &res.Standings[i]
				break
			}
		}
	case method == MethodKarmatocracy:
		res.Outcome = OutcomeDecided
		res.Winner = &res.Standings[0]
	default:
		res.Required = Threshold(method, electorate)
		if res.Standings[0].Votes >= res.Required {
			res.Outcome = OutcomeDecided
			res.Winner = &res.Standings[0]
		}
	}
	return res, nil
}

func (e Evaluator) standings(ctx context.Context, candidates []Candidate) ([]Standing, error) {
	out := make([]Standing, len(candidates))
	for i, c := range candidates {
		s := Standing{Candidate: c}
		if e.Reputation != nil {
			score, err := e.Reputation.ReputationScore(ctx, c.Author)
			if err != nil {
				return nil, fmt.Errorf("reputation of %s: %w", c.Author, err)
			}
			s.Reputation = score
		}
		if e.Activity != nil {
			ts, ok, err := e.Activity.FirstActivity(ctx, c.Author)
			if err != nil {
				return nil, fmt.Errorf("first activity of %s: %w", c.Author, err)
			}
			s.FirstActivity, s.KnownActivity = ts, ok
		}
		out[i] = s
	}
	return out, nil
}

func byVotes(a, b Standing) int {
	if c := cmp.Compare(b.Votes, a.Votes); c != 0 {
		return c
	}
	return byReputation(a, b)
}

func byReputation(a, b Standing) int {
	if c := cmp.Compare(b.Reputation, a.Reputation); c != 0 {
		return c
	}
	return bySeniority(a, b)
}

func bySeniority(a, b Standing) int {
	switch {
	case a.KnownActivity && !b.KnownActivity:
		return -1
	case !a.KnownActivity && b.KnownActivity:
		return 1
	case a.KnownActivity:
		if c := cmp.Compare(a.FirstActivity, b.FirstActivity); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(a.Nominated, b.Nominated); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// byNomination puts the most recent nomination first.
func byNomination(a, b Standing) int {
	if c := cmp.Compare(b.Nominated, a.Nominated); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
