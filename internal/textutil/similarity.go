package textutil

import (
	"regexp"
	"strings"
)

var digitRunPattern = regexp.MustCompile(`\d+`)

// Similarity scores two normalized strings in [0, 1]. Equal strings score
// 1.0. Otherwise the score is Jaccard word-set overlap, plus a flat 0.2
// bonus when either string contains the other, plus up to 0.3 proportional
// to shared numeric tokens (volume numbers are a strong same-title signal).
// The sum is clamped to 1.0. Pure and side-effect free.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for word := range wordsA {
		if _, ok := wordsB[word]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	score := float64(intersection) / float64(union)

	if strings.Contains(a, b) || strings.Contains(b, a) {
		score += 0.2
	}

	numsA := numericTokens(a)
	numsB := numericTokens(b)
	if len(numsA) > 0 && len(numsB) > 0 {
		shared := 0
		for num := range numsA {
			if _, ok := numsB[num]; ok {
				shared++
			}
		}
		larger := len(numsA)
		if len(numsB) > larger {
			larger = len(numsB)
		}
		score += float64(shared) / float64(larger) * 0.3
	}

	if score > 1 {
		return 1
	}
	return score
}

func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(text)
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

func numericTokens(text string) map[string]struct{} {
	runs := digitRunPattern.FindAllString(text, -1)
	if len(runs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(runs))
	for _, run := range runs {
		set[run] = struct{}{}
	}
	return set
}
