// Package suggest offers closest-name hints for mistyped identifiers:
// table names, connection names, adapter names.
package suggest

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Limit caps how many suggestions one lookup returns.
const Limit = 3

// lowerSource adapts a lowercased name list to fuzzy.Source.
type lowerSource []string

func (l lowerSource) String(i int) string { return l[i] }
func (l lowerSource) Len() int            { return len(l) }

// Closest ranks candidates by fuzzy similarity to input, best first, at most
// Limit entries. Matching is case-insensitive; returned names keep their
// original casing. Candidates byte-identical to the input are dropped, since
// echoing the failed name back helps nobody.
func Closest(input string, candidates []string) []string {
	if input == "" || len(candidates) == 0 {
		return nil
	}

	source := make(lowerSource, len(candidates))
	for i, c := range candidates {
		source[i] = strings.ToLower(c)
	}

	matches := fuzzy.FindFrom(strings.ToLower(input), source)
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	out := make([]string, 0, Limit)
	for _, m := range matches {
		if candidates[m.Index] == input {
			continue
		}
		out = append(out, candidates[m.Index])
		if len(out) == Limit {
			break
		}
	}
	return out
}

// Hint formats a did-you-mean phrase for error messages, or "" when no
// candidate comes close.
func Hint(input string, candidates []string) string {
	names := Closest(input, candidates)
	if len(names) == 0 {
		return ""
	}
	return "did you mean " + strings.Join(names, ", ") + "?"
}
