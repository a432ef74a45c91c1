package mediacache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"optic/internal/post"
)

// fingerprintLen is the number of hex characters kept from the reference
// hash. 32 characters (128 bits) keeps filenames short while making
// accidental collisions implausible at any realistic batch size.
const fingerprintLen = 32

// Fingerprint derives the deterministic cache key for a media reference. It
// hashes the reference string itself, not the content: the key must be
// computable before anything is fetched.
func Fingerprint(ref post.MediaRef) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(ref.String())))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// knownExtensions are the media file extensions preserved in cache paths.
// CDN URLs carry query noise but a stable path extension.
var knownExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
	".heic": {},
	".mp4":  {},
}

// refExtension extracts a usable file extension from the reference URL path,
// defaulting to .jpg when the URL gives nothing recognizable.
func refExtension(ref post.MediaRef) string {
	parsed, err := url.Parse(strings.TrimSpace(ref.String()))
	if err == nil {
		ext := strings.ToLower(path.Ext(parsed.Path))
		if _, ok := knownExtensions[ext]; ok {
			return ext
		}
	}
	return ".jpg"
}

// EntryPath returns the cache file location for a reference under root. The
// path is a pure function of the reference, which is what lets re-runs reuse
// prior downloads with no index.
func EntryPath(root string, ref post.MediaRef) string {
	return filepath.Join(root, Fingerprint(ref)+refExtension(ref))
}
