package bookmark

import "strings"

// Tag length bounds applied by NormalizeTags. Values outside these bounds
// are discarded, not truncated.
const (
	MinTagLen = 2
	MaxTagLen = 30
)

// NormalizeTags lowercases and trims tags, drops values outside the
// length bounds, removes duplicates preserving first-seen order, and caps
// the result at max entries (no cap when max <= 0). The input slice is
// never modified.
func NormalizeTags(tags []string, max int) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if len(t) < MinTagLen || len(t) > MaxTagLen {
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// MergeTags combines AI-generated tags with user-supplied tags. AI tags
// come first (they reflect the content), user tags fill the remaining
// room, and the merged set is normalized and capped at max. Merging is
// idempotent: merging the result with the same inputs yields the same
// set.
func MergeTags(aiTags, userTags []string, max int) []string {
	combined := make([]string, 0, len(aiTags)+len(userTags))
	combined = append(combined, aiTags...)
	combined = append(combined, userTags...)
	return NormalizeTags(combined, max)
}
