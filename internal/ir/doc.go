// Package ir provides the record model shared by every strata package.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for prices, scores and coordinates
//   - Record ids are content-addressed (SHA-256 over RFC 8785 canonical JSON)
//   - Payloads are a tagged union keyed by kind; unknown shapes decode to Opaque
//   - All JSON tags use snake_case
package ir
