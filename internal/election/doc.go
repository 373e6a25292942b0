// Package election evaluates thresholds, elections and time-boxed proposals.
//
// Everything here is a pure function of its inputs plus two read-only
// collaborators (reputation scores and first-activity timestamps). Callers
// derive candidates, ballots and proposals from the projected log and append
// the resulting state changes themselves; this package never writes.
package election
