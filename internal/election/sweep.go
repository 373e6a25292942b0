package election

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Resolution is the terminal state chosen for an expired proposal.
type Resolution struct {
	Proposal Proposal `json:"proposal"`
	To       State    `json:"to"`
	Tally    Tally    `json:"tally"`
	Required int64    `json:"required"`
	Reason   string   `json:"reason"`
}

// Decide resolves p from its ballots, ignoring any cast after the deadline.
//
//   - no ballots: DISCARDED
//   - DICTATORSHIP: the authority's ballot decides; without one, DISCARDED
//   - KARMATOCRACY: APPROVED when the yes side's summed reputation exceeds
//     the no side's, otherwise REJECTED
//   - counted methods: APPROVED when yes meets the threshold over the
//     electorate (never smaller than the number of voters), else REJECTED
func (e Evaluator) Decide(ctx context.Context, p Proposal, ballots []Ballot) (Resolution, error) {
	res := Resolution{Proposal: p, Tally: Count(ballots, p.Deadline)}

	if res.Tally.Cast() == 0 {
		res.To, res.Reason = StateDiscarded, "no ballots cast"
		return res, nil
	}

	switch p.Method {
	case MethodDictatorship:
		res.To, res.Reason = StateDiscarded, "authority did not vote"
		for _, b := range ballots {
			if e.Authority == "" || b.Voter != e.Authority || (p.Deadline > 0 && b.Timestamp > p.Deadline) {
				continue
			}
			switch b.Choice {
			case ChoiceYes:
				res.To, res.Reason = StateApproved, "approved by authority"
			case ChoiceNo:
				res.To, res.Reason = StateRejected, "rejected by authority"
			}
		}

	case MethodKarmatocracy:
		var yes, no int64
		for _, b := range ballots {
			if p.Deadline > 0 && b.Timestamp > p.Deadline {
				continue
			}
			if b.Choice != ChoiceYes && b.Choice != ChoiceNo {
				continue
			}
			score := int64(0)
			if e.Reputation != nil {
				s, err := e.Reputation.ReputationScore(ctx, b.Voter)
				if err != nil {
					return res, fmt.Errorf("reputation of %s: %w", b.Voter, err)
				}
				score = s
			}
			if b.Choice == ChoiceYes {
				yes += score
			} else {
				no += score
			}
		}
		if yes > no {
			res.To = StateApproved
		} else {
			res.To = StateRejected
		}
		res.Reason = fmt.Sprintf("reputation %d for, %d against", yes, no)

	default:
		if !p.Method.Counted() {
			return res, fmt.Errorf("proposal %s: unknown governance method %q", p.ID, p.Method)
		}
		electorate := max(p.Electorate, res.Tally.Cast())
		res.Required = Threshold(p.Method, electorate)
		if res.Tally.Yes >= res.Required {
			res.To = StateApproved
		} else {
			res.To = StateRejected
		}
		res.Reason = fmt.Sprintf("%d of %d yes, %d required", res.Tally.Yes, electorate, res.Required)
	}

	if err := Transition(p.State, res.To); err != nil {
		return res, err
	}
	return res, nil
}

// Sweep resolves every proposal that is pending past its deadline at now.
// Decided proposals are skipped, so sweeping a log that already carries the
// resolutions yields nothing: the sweep is idempotent.
//
// ballots maps proposal id to its ballots. Results are ordered by id.
func (e Evaluator) Sweep(ctx context.Context, now int64, proposals []Proposal, ballots map[string][]Ballot) ([]Resolution, error) {
	due := make([]Proposal, 0, len(proposals))
	for _, p := range proposals {
		if p.Due(now) {
			due = append(due, p)
		}
	}
	slices.SortFunc(due, func(a, b Proposal) int { return strings.Compare(a.ID, b.ID) })

	out := make([]Resolution, 0, len(due))
	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := e.Decide(ctx, p, ballots[p.ID])
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
