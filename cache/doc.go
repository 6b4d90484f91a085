// Package cache memoizes per-file results across compilation passes.
//
// Each file a world touches gets a Slot with two Cells: one for the decoded
// source and one for the raw bytes. Within a pass a cell loads at most once.
// Across passes a cell reloads, fingerprints the result with SipHash-128 and
// keeps its stored value when the fingerprint is unchanged, so unchanged
// files are never re-decoded. A fingerprint collision would serve stale
// content; the 128-bit space makes that an accepted risk.
package cache
