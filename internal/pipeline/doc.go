// Package pipeline drives a batch of posts through fetch and analysis with
// durable, resumable progress.
//
// The orchestrator walks the item sequence in input order, skipping anything
// the loaded checkpoint already marks terminal, and dispatches the rest to a
// bounded pool of analysis workers. Workers fetch media through the cache's
// own pool, call the vision client, and emit completions over a channel to a
// single aggregator goroutine - the only writer of checkpoint state and run
// statistics, which keeps the "one writer" invariant structural instead of
// lock-discipline.
//
// Checkpoints persist atomically every N completions and at shutdown. A
// cancelled context lets in-flight items finish or abandon cleanly; abandoned
// items simply have no terminal record and run again next time.
package pipeline
