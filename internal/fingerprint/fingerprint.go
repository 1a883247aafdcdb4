// Package fingerprint derives stable identifiers for reviews that carry no durable upstream id.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"review_sync/internal/domain"
)

// Policy decides which fields identify a review.
type Policy string

const (
	// Content hashes location, timestamp, author, rating and body.
	// An edited review gets a new fingerprint and is stored as a new row.
	Content Policy = "content"
	// Identity hashes location, timestamp and author only, so edits update in place.
	// Falls back to Content when neither timestamp nor author is present.
	Identity Policy = "identity"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Content:
		return Content, nil
	case Identity:
		return Identity, nil
	}
	return "", fmt.Errorf("unknown fingerprint policy %q", s)
}

const hashLen = 32 // hex chars kept from the sha256 digest

// Generator produces fingerprints for one provider response at a time.
type Generator struct {
	policy Policy
}

func New(p Policy) *Generator {
	if p == "" {
		p = Content
	}
	return &Generator{policy: p}
}

func (g *Generator) Policy() Policy { return g.policy }

// Fingerprint returns the dedup key for r. ordinal is the position of r within the
// response and is only used when r has no content at all; such reviews are
// unique within a response but register as new on every run.
func (g *Generator) Fingerprint(locationRef string, r domain.RawReview, ordinal int) string {
	author := strings.TrimSpace(r.Author)
	body := strings.TrimSpace(r.Body)
	ts := ""
	if r.ReviewedAt != nil {
		ts = r.ReviewedAt.UTC().Format(time.RFC3339Nano)
	}

	if author == "" && body == "" && ts == "" && r.Rating == 0 {
		return truncate(locationRef, fmt.Sprintf(":ordinal:%d", ordinal))
	}

	var tuple []any
	if g.policy == Identity && (ts != "" || author != "") {
		tuple = []any{locationRef, ts, author}
	} else {
		tuple = []any{locationRef, ts, author, r.Rating, body}
	}
	// json encoding of a flat array of strings and ints cannot fail
	canon, _ := json.Marshal(tuple)
	sum := sha256.Sum256(canon)
	return truncate(locationRef, ":"+hex.EncodeToString(sum[:])[:hashLen])
}

// truncate keeps suffix intact and shortens prefix so the whole fits the column.
func truncate(prefix, suffix string) string {
	room := domain.MaxFingerprintLen - len(suffix)
	if len(prefix) > room {
		prefix = prefix[:room]
		for len(prefix) > 0 && !utf8.ValidString(prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix + suffix
}
