package fusion

import "strings"

// MatchThreshold is the exclusive lower bound a score must exceed to count
// as a match against a known ticket.
const MatchThreshold = 0.3

var stopWords = toSet(strings.Fields(`the a an and or but in on at to for of with by is are was were
	be been have has had do does did will would could should may might can this that these those
	i you he she it we they me him her us them`))

func toSet(words []string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Words splits text on whitespace into a lower-cased word set.
func Words(text string) map[string]struct{} {
	return toSet(strings.Fields(strings.ToLower(text)))
}

// ContentWords is Words with stop words removed.
func ContentWords(text string) map[string]struct{} {
	words := Words(text)
	for w := range words {
		if _, stop := stopWords[w]; stop {
			delete(words, w)
		}
	}
	return words
}

// Score is |a ∩ b| / max(|a|, |b|). It is 0 when either set is empty.
func Score(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	common := 0
	for w := range small {
		if _, ok := large[w]; ok {
			common++
		}
	}
	return float64(common) / float64(max(len(a), len(b)))
}
