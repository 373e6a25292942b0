// Package policy compiles per-domain policy tables from CUE.
//
// Every feature of the platform (market, jobs, replies, votes, ...) shares
// the projection engine and differs only in its table: content types,
// grouping key, status ranks, cascade parent, blob field, dedupe signature
// and governance settings. The built-in tables are embedded; a directory of
// CUE files can override or extend them by name.
//
// Policies are declared under a top-level "policy" struct:
//
//	policy: market: {
//		types: ["market"]
//		status: {
//			field: "status"
//			rank: ["FOR_SALE", "OPEN", "RESERVED", "CLOSED", "SOLD"]
//		}
//	}
//
// Each value is unified with the #Policy schema before compilation, and the
// whole set is validated for cross-policy consistency (E1xx codes).
package policy
