// Package post defines the normalized social-post item consumed by the
// pipeline and the reader for the items file an external normalizer produces.
// The pipeline never sees raw platform exports; it starts from these shapes.
package post
