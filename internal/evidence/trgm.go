package evidence

import "strings"

// trigrams returns the set of overlapping 3-grams of s, lowercased and
// padded the way Postgres's pg_trgm extension pads short strings so
// single-word queries still produce comparable grams.
func trigrams(s string) map[string]struct{} {
	s = "  " + strings.ToLower(strings.TrimSpace(s)) + " "
	runes := []rune(s)
	grams := make(map[string]struct{})
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = struct{}{}
	}
	return grams
}

// trigramSimilarity computes the Jaccard similarity between the trigram
// sets of a and b, mirroring pg_trgm's similarity() semantics closely
// enough for ranking purposes (0 when either side is empty).
func trigramSimilarity(a, b string) float64 {
	ga, gb := trigrams(a), trigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	intersection := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			intersection++
		}
	}
	union := len(ga) + len(gb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
