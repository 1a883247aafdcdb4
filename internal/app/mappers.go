package app

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"review_sync/internal/domain"
)

/********** alias registries (single source of truth) **********/

// Both provider shapes are covered; the first non-empty path wins.
var reviewAliases = map[string][]string{
	"author": {"author_name", "reviewer.displayName", "authorAttribution.displayName", "author", "reviewer.name"},
	"rating": {"rating", "starRating", "rating.value"},
	"text":   {"text", "comment", "text.text", "originalText.text", "body"},
	// createTime before updateTime: an edit must not move the review's timestamp
	"time": {"time", "createTime", "publishTime", "updateTime"},
	"lang": {"language", "originalLanguage", "languageCode", "text.languageCode", "lang"},
}

var summaryAliases = map[string][]string{
	"name":         {"name", "title", "displayName.text", "locationName"},
	"rating":       {"rating", "averageRating"},
	"rating_count": {"user_ratings_total", "totalReviewCount", "userRatingCount"},
}

var starRatings = map[string]int{"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// getFloatFlexible: number from several paths (float64/int/string like "4,5").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

/********** field normalizers **********/

// parseRating maps numeric and enumerated star ratings to 1..5; anything else is 0.
func parseRating(m map[string]any) int {
	for _, p := range reviewAliases["rating"] {
		switch v := lookupAny(m, p).(type) {
		case nil:
			continue
		case string:
			s := strings.ToUpper(strings.TrimSpace(v))
			if n, ok := starRatings[s]; ok {
				return n
			}
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
				return clampRating(f)
			}
			return 0
		case float64:
			return clampRating(v)
		case int:
			return clampRating(float64(v))
		default:
			return 0
		}
	}
	return 0
}

func clampRating(f float64) int {
	n := int(math.Round(f))
	if n < 1 || n > 5 {
		return 0
	}
	return n
}

// parseTime accepts unix seconds (or millis), numeric strings and RFC 3339.
func parseTime(m map[string]any) *time.Time {
	for _, p := range reviewAliases["time"] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			if t := fromUnix(int64(v)); t != nil {
				return t
			}
		case int64:
			if t := fromUnix(v); t != nil {
				return t
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				if t := fromUnix(n); t != nil {
					return t
				}
				continue
			}
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				u := t.UTC()
				return &u
			}
		}
	}
	return nil
}

func fromUnix(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n > 1e12 {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}

// normalizeLang canonicalizes a BCP 47 tag; unparseable tags are dropped.
func normalizeLang(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(s)
	if err != nil || tag == language.Und {
		return ""
	}
	return tag.String()
}

/********** reviews mapper **********/

func mapRawReviews(in []map[string]any) []domain.RawReview {
	out := make([]domain.RawReview, 0, len(in))
	for _, r := range in {
		rv := domain.RawReview{
			Author:     deref(firstNonEmptyAlias(r, reviewAliases, "author")),
			Rating:     parseRating(r),
			Body:       deref(firstNonEmptyAlias(r, reviewAliases, "text")),
			ReviewedAt: parseTime(r),
			Lang:       normalizeLang(deref(firstNonEmptyAlias(r, reviewAliases, "lang"))),
		}
		if raw, err := json.Marshal(r); err == nil {
			rv.RawJSON = raw
		} else {
			log.Error().Err(err).Str("context", "mapRawReviews").Msg("marshal review failed")
		}
		out = append(out, rv)
	}
	return out
}

/********** summary mapper **********/

func mapSummary(s map[string]any) domain.LocationSummary {
	if len(s) == 0 {
		return domain.LocationSummary{}
	}
	return domain.LocationSummary{
		DisplayName: firstNonEmptyAlias(s, summaryAliases, "name"),
		Rating:      getFloatFlexible(s, summaryAliases["rating"]...),
		RatingCount: firstInt64Flexible(s, summaryAliases["rating_count"]...),
	}
}
