// Package canon manages the project's canonical context log: an ordered,
// index-tagged sequence of compact segment descriptions used as sliding-window
// memory across model calls.
//
// Wire format for one item:
//
//	[#IDX=<n>] #<n+1, zero-padded to 3> (<start>s-<end>s): <description>
//
// Items are joined by "\n---\n". Items without a recognizable index token are
// preserved by every trimming operation.
package canon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Separator joins canon items on the wire.
const Separator = "\n---\n"

var (
	idxTokenRe = regexp.MustCompile(`^\[#IDX=(\d+)\]\s*`)
	// legacyItemRe matches the pre-token item header "片段N(".
	legacyItemRe = regexp.MustCompile(`^片段(\d+)\(`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	canonSummaryRe = regexp.MustCompile(`^\[\[CANON_SUMMARY\]\]\s*:?\s*(.*)$`)
	musicStateRe   = regexp.MustCompile(`^\[\[MUSIC_STATE\]\]\s*:?\s*(.*)$`)
)

// Split breaks a canon blob into trimmed, non-empty items.
func Split(canon string) []string {
	if strings.TrimSpace(canon) == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(canon, Separator) {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// Join reassembles items into a canon blob.
func Join(items []string) string {
	return strings.Join(items, Separator)
}

// ParseIndex extracts the 0-based segment index of an item. It understands
// the [#IDX=n] token and the legacy "片段N(" header (1-based).
func ParseIndex(item string) (int, bool) {
	if m := idxTokenRe.FindStringSubmatch(item); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}
	if m := legacyItemRe.FindStringSubmatch(item); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n - 1, true
		}
	}
	return 0, false
}

// Append adds an item to the canon. Empty items are no-ops; the separator is
// omitted when the canon is empty.
func Append(canon, item string) string {
	item = strings.TrimSpace(item)
	if item == "" {
		return canon
	}
	if strings.TrimSpace(canon) == "" {
		return item
	}
	return canon + Separator + item
}

// Recent returns the last keep items joined by the separator.
func Recent(canon string, keep int) string {
	items := Split(canon)
	if keep <= 0 || len(items) == 0 {
		return ""
	}
	if len(items) > keep {
		items = items[len(items)-keep:]
	}
	return Join(items)
}

// BeforeIndex returns the items whose parsed index is strictly below i.
// Items without a recognizable index are kept to avoid data loss.
func BeforeIndex(canon string, i int) string {
	var kept []string
	for _, item := range Split(canon) {
		idx, ok := ParseIndex(item)
		if !ok || idx < i {
			kept = append(kept, item)
		}
	}
	return Join(kept)
}

// ReplaceByIndex replaces the first item with the given index, appending the
// item when no match exists.
func ReplaceByIndex(canon string, i int, item string) string {
	item = strings.TrimSpace(item)
	if item == "" {
		return canon
	}
	items := Split(canon)
	for pos, existing := range items {
		if idx, ok := ParseIndex(existing); ok && idx == i {
			items[pos] = item
			return Join(items)
		}
	}
	return Append(canon, item)
}

// Format renders one canon item for segment i covering [start, end) seconds.
func Format(i, start, end int, description string) string {
	return fmt.Sprintf("[#IDX=%d] #%03d (%ds-%ds): %s", i, i+1, start, end, description)
}

// CompactDescription condenses raw analyzer output into a single line of at
// most maxChars runes. A line tagged [[CANON_SUMMARY]] is preferred; otherwise
// the first non-empty line is used. Internal whitespace is collapsed and long
// text is ellipsized.
func CompactDescription(raw string, maxChars int) string {
	var chosen string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if line == "" {
			continue
		}
		if m := canonSummaryRe.FindStringSubmatch(line); m != nil {
			chosen = m[1]
			break
		}
		if chosen == "" {
			chosen = line
		}
	}
	chosen = whitespaceRe.ReplaceAllString(strings.TrimSpace(chosen), " ")
	if maxChars > 0 {
		if runes := []rune(chosen); len(runes) > maxChars {
			chosen = string(runes[:maxChars-1]) + "…"
		}
	}
	return chosen
}

// ExtractMusicState returns the value of a [[MUSIC_STATE]] line in raw
// analyzer output, or "" when absent. The value is not persisted anywhere
// in the pipeline today.
func ExtractMusicState(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if m := musicStateRe.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
