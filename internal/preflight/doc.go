// Package preflight provides readiness checks for the filesystem paths and
// the vision endpoint a run depends on.
//
// These checks run in two contexts:
//   - The "optic run" command calls RunAll before touching the checkpoint.
//     If any check fails, the run refuses to start rather than burn hours on
//     a doomed batch.
//   - The CLI "optic check" command uses the same functions to display
//     readiness without starting anything.
package preflight
