// Package mediacache downloads post media into content-addressable local
// storage. Cache paths derive from a fingerprint of the media reference, so a
// second run finds prior downloads without any index file. Fetches run
// through a bounded worker pool with per-reference in-flight deduplication:
// concurrent requests for one reference produce exactly one network call and
// one file write, and every caller sees the same entry.
//
// Fetch failures are data at this boundary. A reference that exhausts its
// retry budget yields a failed entry, never an error that could abort the
// batch; the orchestrator decides what a failed entry means for the item.
package mediacache
