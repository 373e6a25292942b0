package election

import (
	"fmt"
	"slices"
)

// State is the lifecycle state of a proposal, case or candidature.
type State string

const (
	StateOpen       State = "OPEN"
	StateInProgress State = "IN_PROGRESS"
	StateDecided    State = "DECIDED"
	StateApproved   State = "APPROVED"
	StateRejected   State = "REJECTED"
	StateEnacted    State = "ENACTED"
	StateDiscarded  State = "DISCARDED"
)

var transitions = map[State][]State{
	StateOpen:       {StateInProgress, StateDecided, StateApproved, StateRejected, StateDiscarded},
	StateInProgress: {StateDecided, StateApproved, StateRejected, StateDiscarded},
	StateApproved:   {StateEnacted},
}

// Pending reports whether s still awaits a decision.
func (s State) Pending() bool {
	return s == StateOpen || s == StateInProgress
}

// Terminal reports whether s is a decided state. APPROVED is terminal for
// the vote but may still advance to ENACTED.
func (s State) Terminal() bool {
	switch s {
	case StateDecided, StateApproved, StateRejected, StateEnacted, StateDiscarded:
		return true
	}
	return false
}

// TransitionError reports a state change the lifecycle does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Transition validates a state change.
func Transition(from, to State) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Choice is a ballot value.
type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceAbstain Choice = "abstain"
)

// Proposal is the decision-relevant view of a time-boxed proposal.
type Proposal struct {
	ID         string `json:"id"` // Entity key
	TipID      string `json:"tip_id"`
	Author     string `json:"author"`
	Method     Method `json:"method"`
	State      State  `json:"state"`
	Deadline   int64  `json:"deadline"`   // Unix ms; 0 never expires
	Electorate int64  `json:"electorate"` // Eligible voters; 0 counts voters
}

// Due reports whether p is pending past its deadline at now.
func (p Proposal) Due(now int64) bool {
	return p.State.Pending() && p.Deadline > 0 && now > p.Deadline
}

// Ballot is one voter's current choice.
type Ballot struct {
	Voter     string `json:"voter"`
	Choice    Choice `json:"choice"`
	Timestamp int64  `json:"timestamp"`
}

// Tally counts ballots.
type Tally struct {
	Yes     int64 `json:"yes"`
	No      int64 `json:"no"`
	Abstain int64 `json:"abstain"`
}

// Cast returns the number of ballots counted.
func (t Tally) Cast() int64 {
	return t.Yes + t.No + t.Abstain
}

// Count tallies ballots cast no later than deadline (0 accepts all).
// Unknown choices are ignored.
func Count(ballots []Ballot, deadline int64) Tally {
	var t Tally
	for _, b := range ballots {
		if deadline > 0 && b.Timestamp > deadline {
			continue
		}
		switch b.Choice {
		case ChoiceYes:
			t.Yes++
		case ChoiceNo:
			t.No++
		case ChoiceAbstain:
			t.Abstain++
		}
	}
	return t
}
