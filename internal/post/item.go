package post

import (
	"sort"
	"strings"
	"time"
)

// MediaRef is one media reference attached to a post, in carousel order. It is
// a URL-like string; the media cache derives its fingerprint from it.
type MediaRef string

// String returns the underlying reference.
func (m MediaRef) String() string { return string(m) }

// Owner identifies the posting account.
type Owner struct {
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

// Engagement carries the public interaction counts captured at export time.
// Likes is a pointer because platforms allow hiding like counts.
type Engagement struct {
	Likes         *int `json:"likes"`
	CommentsCount int  `json:"comments_count"`
	VideoViews    int  `json:"video_views,omitempty"`
}

// Comment is one normalized comment. IsFirst marks the poster's pinned first
// comment, which often continues the caption and outranks ordinary comments
// when the prompt budget forces a cut.
type Comment struct {
	Username  string    `json:"username,omitempty"`
	Text      string    `json:"text"`
	Likes     int       `json:"likes,omitempty"`
	IsFirst   bool      `json:"is_first,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Item is one unit of work: a normalized post with its text context and
// ordered media references. Items are immutable for the duration of a run.
type Item struct {
	ID         string     `json:"id"`
	URL        string     `json:"url,omitempty"`
	Type       string     `json:"type,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitzero"`
	Owner      Owner      `json:"owner"`
	Location   string     `json:"location,omitempty"`
	Engagement Engagement `json:"engagement"`
	Caption    string     `json:"caption"`
	Hashtags   []string   `json:"hashtags,omitempty"`
	Mentions   []string   `json:"mentions,omitempty"`
	Comments   []Comment  `json:"comments,omitempty"`
	Media      []MediaRef `json:"media"`
	IsVideo    bool       `json:"is_video,omitempty"`
}

// Dedupe drops repeated item IDs, keeping the first occurrence. A repeated ID
// in one input sequence is a normalizer bug; later occurrences lose. The
// returned slice preserves input order. Dropped counts the discarded items.
func Dedupe(items []Item) (kept []Item, dropped []string) {
	seen := make(map[string]struct{}, len(items))
	kept = make([]Item, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			dropped = append(dropped, "<missing id>")
			continue
		}
		if _, ok := seen[id]; ok {
			dropped = append(dropped, id)
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, item)
	}
	return kept, dropped
}

// Sample returns the n most recent items by timestamp, re-sorted back into the
// original input order so pipeline iteration stays stable. n <= 0 or n >=
// len(items) returns items unchanged.
func Sample(items []Item, n int) []Item {
	if n <= 0 || n >= len(items) {
		return items
	}

	type indexed struct {
		pos  int
		item Item
	}
	ordered := make([]indexed, len(items))
	for i, item := range items {
		ordered[i] = indexed{pos: i, item: item}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].item.Timestamp.After(ordered[j].item.Timestamp)
	})
	ordered = ordered[:n]
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].pos < ordered[j].pos })

	sampled := make([]Item, n)
	for i, entry := range ordered {
		sampled[i] = entry.item
	}
	return sampled
}
