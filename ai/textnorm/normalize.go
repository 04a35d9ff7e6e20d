// Package textnorm folds Vietnamese place names into the canonical norm key space
// and generates the word n-gram candidates used for location lookup.
package textnorm

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxGram is the longest word window generated by Grams.
const DefaultMaxGram = 3

var dStroke = strings.NewReplacer("đ", "d", "Đ", "d")

// Normalize lower-cases s, strips diacritics and maps đ to d.
// The result is the key stored in a location document's norm field, so the
// same function must be applied to stored names and incoming text.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	lowered := strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, lowered)
	if err != nil {
		folded = lowered
	}
	return strings.TrimSpace(dStroke.Replace(folded))
}

// Despace removes every whitespace rune from s.
func Despace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Grams returns every contiguous word window of text, longest windows first,
// each followed by its whitespace-stripped variant. Duplicates are dropped.
func Grams(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxGram
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	n := min(maxLen, len(words))
	seen := make(map[string]struct{})
	out := make([]string, 0, len(words)*n*2)
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for size := n; size >= 1; size-- {
		for i := 0; i+size <= len(words); i++ {
			phrase := strings.Join(words[i:i+size], " ")
			add(phrase)
			add(Despace(phrase))
		}
	}
	return out
}

// MergeCandidates unions externally supplied candidates (e.g. an LLM-extracted
// city) with locally generated grams and orders them longest first.
// Equal lengths fall back to lexical order so lookups are reproducible.
func MergeCandidates(external, local []string) []string {
	seen := make(map[string]struct{}, len(external)+len(local))
	out := make([]string, 0, len(external)+len(local))
	for _, list := range [][]string{external, local} {
		for _, c := range list {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	SortLongestFirst(out)
	return out
}

// SortLongestFirst orders candidates by descending rune count, then lexically.
func SortLongestFirst(candidates []string) {
	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(candidates[i]), utf8.RuneCountInString(candidates[j])
		if li != lj {
			return li > lj
		}
		return candidates[i] < candidates[j]
	})
}
