// Package main hosts the optic CLI entrypoint and command graph.
//
// The Cobra-based command tree drives batch analysis runs, checkpoint and
// results inspection, media cache maintenance, readiness checks, and
// configuration scaffolding. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
