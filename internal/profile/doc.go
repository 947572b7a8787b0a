// Package profile owns the set of named configuration profiles, the
// active-profile pointer and the one-time migration from pre-profile storage.
//
// The whole profile map lives in a single replicated document; every mutation
// is a read-snapshot, compute, write-whole-document sequence. Two contexts
// updating concurrently race, and the last writer wins — an accepted risk for
// the single-user deployment target, documented here instead of hidden behind
// false atomicity.
//
// Exactly one profile with id "default" always exists after migration and can
// never be deleted or renamed. At most ten profiles may exist at once.
//
// Settings is a fully typed document: nested sub-documents merge
// field-by-field while arrays and scalars are replaced wholesale, and a nil
// patch field never erases an existing value (see Merge).
package profile
