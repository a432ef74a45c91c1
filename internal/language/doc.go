// Package language normalizes the language labels the vision model reports
// in verdict metadata. Models name languages inconsistently (ISO codes, full
// words, odd casing); statistics rollups and status rendering want one
// canonical display label per language.
package language
