// Package services defines the shared failure vocabulary for the pipeline's
// external integrations.
//
// Sentinel markers distinguish transient network trouble (retryable) from
// permanent request failures, undecodable responses, and exhausted retry
// budgets. The Wrap helper tags errors with component and operation context
// so the orchestrator can classify any failure chain into the terminal
// outcome it records, and log lines stay greppable.
package services
