package ruleset

import (
	"fmt"
	"strings"
)

// suggest proposes the closest candidate to an unknown name, or lists the
// candidates when none is close.
func suggest(unknown string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	best, bestDistance := "", -1
	for _, c := range candidates {
		d := levenshteinDistance(strings.ToUpper(unknown), strings.ToUpper(c))
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = c, d
		}
	}

	if bestDistance < 5 {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}
	if len(candidates) > 6 {
		return fmt.Sprintf("Valid values include: %s, ...", strings.Join(candidates[:6], ", "))
	}
	return fmt.Sprintf("Valid values: %s", strings.Join(candidates, ", "))
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}
	a, b := []rune(s1), []rune(s2)

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
