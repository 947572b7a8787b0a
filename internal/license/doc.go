// Package license resolves and caches the user's paid tier.
//
// The cache moves through UNINITIALIZED -> {CACHED_FRESH, CACHED_STALE} ->
// VERIFYING -> {CACHED_FRESH, DEGRADED}. A cached license younger than 24
// hours is served without a remote call. Verification is a single bounded
// attempt; on failure the last cached license is served indefinitely, or a
// free default when none exists. Callers never receive an error from Init or
// Verify — entitlement problems are soft states by design.
//
// The license document is always replaced as a whole unit together with its
// cachedAt stamp, so concurrent readers get either the previous or the new
// value, never a torn one.
package license
