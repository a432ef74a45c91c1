// Package results archives full analysis outcomes in SQLite.
//
// The checkpoint ledger stays deliberately small; everything heavier lives
// here: the complete verdict JSON per item, token usage, attempt counts, and
// the raw response payload when decoding failed. The archive feeds `optic
// export`, `optic failures`, and `optic status`, and it survives fresh starts
// because records are keyed by item, not by run.
package results
