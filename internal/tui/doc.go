// Package tui renders a live view of a running batch.
//
// The watch model polls the checkpoint file read-only; it never takes the
// advisory lock, so it can observe a run owned by another process without
// interfering with it.
package tui
