// Package harness runs projection scenarios against the service layer.
//
// A scenario publishes, edits, deletes and sweeps through service.Service on
// a fresh in-memory log with a deterministic clock, then asserts on the
// resulting views. Records are addressed by labels rather than ids.
//
// # Scenario Format
//
//	name: market_sold_wins
//	description: "SOLD outranks a later RESERVED sibling"
//	setup:
//	  blobs: [img-1]
//	  reputation: { alice: 10 }
//	steps:
//	  - action: publish
//	    domain: market
//	    author: alice
//	    fields: { title: bike, status: FOR_SALE }
//	    as: bike
//	  - action: edit
//	    domain: market
//	    author: alice
//	    target: $bike
//	    fields: { status: SOLD }
//	    as: sold
//	  - action: edit
//	    domain: market
//	    author: alice
//	    target: $bike
//	    fields: { status: FOR_SALE }
//	    expect_error: STATUS_REGRESSION
//	assertions:
//	  - type: tip
//	    domain: market
//	    id: $bike
//	    tip: $sold
//	views: [market]
//
// # Assertion Types
//
//   - visible: the ordered tip labels of a (filtered) listing
//   - count: the size of a (filtered) listing
//   - hidden: the entity containing id is not visible
//   - tip: the tip of the entity containing id
//   - fields: a subset of the tip's fields
//   - election: the outcome and winner of an election key
//
// # Labels
//
// Steps with "as" label the record they append; "$label" in targets, field
// values and assertions refers to it. Unlabelled records, such as sweep
// resolutions and automatic tombstones, are shown as "@seq" in traces and
// views.
package harness
