// Package textutil provides the small text helpers shared by prompt assembly
// and output rendering: rune-safe truncation, whitespace collapsing, and
// single-line snippets for log and error text.
package textutil
