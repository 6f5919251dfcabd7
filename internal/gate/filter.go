package gate

import "regexp"

// Forbidden factual assertion patterns per spec.md §4.8: year numbers
// (公元N年 / N-digit years / 距今N年), generational markers (第N代 / 第N世),
// and emperor reign names with an optional trailing year. Compiled once at
// package scope, the same idiom as internal/policy/activation.go's
// activationCommandRegex.
var (
	yearAnnoRegex   = regexp.MustCompile(`公元[前后]?\s*\d{1,4}\s*年`)
	yearBareRegex   = regexp.MustCompile(`\b\d{3,4}\s*年\b`)
	yearAgoRegex    = regexp.MustCompile(`距今\s*\d{1,5}\s*年`)
	generationRegex = regexp.MustCompile(`第\s*[〇一二三四五六七八九十百千0-9]+\s*[代世]`)
	reignNameRegex  = regexp.MustCompile(`[\p{Han}]{2,4}(元|初|末|中)年(间)?`)

	forbiddenPatterns = []*regexp.Regexp{yearAnnoRegex, yearBareRegex, yearAgoRegex, generationRegex, reignNameRegex}
)

// FindForbiddenAssertions returns every substring of text that matches one
// of the forbidden factual-assertion patterns, in order of appearance.
func FindForbiddenAssertions(text string) []string {
	var found []string
	for _, re := range forbiddenPatterns {
		found = append(found, re.FindAllString(text, -1)...)
	}
	return found
}

// blurredYear and blurredGeneration are the replacement phrases spec.md
// §4.8 names for downgrading a filtered response.
const (
	blurredYear       = "many years ago"
	blurredGeneration = "some point in the dynasty"
)

// Filter replaces every forbidden factual assertion in text with a blurred
// phrase: year/date patterns become blurredYear, generational/reign-name
// patterns become blurredGeneration.
func Filter(text string) string {
	text = yearAnnoRegex.ReplaceAllString(text, blurredYear)
	text = yearBareRegex.ReplaceAllString(text, blurredYear)
	text = yearAgoRegex.ReplaceAllString(text, blurredYear)
	text = generationRegex.ReplaceAllString(text, blurredGeneration)
	text = reignNameRegex.ReplaceAllString(text, blurredGeneration)
	return text
}
