// Package kvstore provides the key->document storage substrate shared by every
// chatpilot process.
//
// Two areas exist: AreaLocal holds device-local documents (the vault key, the
// credit ledger, API keys) and AreaSync holds documents that replicate across a
// user's devices (profiles, the license cache). The substrate offers no
// transactions and no compare-and-swap: higher layers model every multi-step
// update as "read snapshot, compute next value, write whole document" and
// accept the lost-update risk that comes with concurrent writers.
//
// SQLiteStore is the production implementation (one database file, WAL mode,
// one table per area). MemStore is a map-backed implementation for tests with
// hooks for injecting read and write failures.
package kvstore
