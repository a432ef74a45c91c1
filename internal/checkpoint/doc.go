// Package checkpoint owns the durable run ledger that makes batches resumable.
//
// The ledger (State) records one terminal outcome per item plus aggregate
// counters and a monotonically increasing cursor. Only terminal outcomes are
// ever written: an item that was in flight when the process died simply has no
// record and is reattempted on the next run.
//
// # Storage
//
// State persists as a single human-readable JSON file (default:
// <data_dir>/state/checkpoint.json). Every save goes through a temporary
// sibling file and an atomic rename, so readers and crashed writers never see
// a partial checkpoint. A file that is present but unreadable is surfaced as
// ErrCorrupt and halts the run; it is never silently discarded.
//
// # Locking
//
// An advisory flock (checkpoint.json.lock) guarantees a single writing process
// per checkpoint. Read-only consumers such as `optic status` and `optic watch`
// read the JSON file directly without taking the lock.
package checkpoint
