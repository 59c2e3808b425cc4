// Package ir provides the canonical in-memory representation of
// prescription documents and their units.
//
// This package contains type definitions and identity helpers only. All
// other internal packages import ir; ir imports nothing internal. This
// keeps the unit model the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - Units are immutable after load. All run-time state lives in the
//     engine's run and candidate contexts, never on the unit itself.
//   - Unit identity is (namespace, name, kind) and is unique per
//     namespace+kind.
//   - Report dedup keys are computed from NFC-normalized text so that
//     visually identical messages collapse to one entry.
package ir
