package analysis

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/spacesedan/bluesense/internal/models"
)

const MIN_TERM_LENGTH = 3

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the and this that for you but not with are have from they will has can
		was were what when who how all their there been would could should your
		his her our just more some like very much then than also
		about into only its out get got had him she did does don dont amp via
		http https www com`) {
		stopwords[w] = struct{}{}
	}
}

// Tokenize lower-cases and normalises text, then splits it into words of at
// least three characters, dropping stopwords and pure numbers.
func Tokenize(text string) []string {
	lower := cases.Lower(language.Und).String(norm.NFKC.String(text))

	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < MIN_TERM_LENGTH {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if strings.IndexFunc(f, unicode.IsLetter) < 0 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// TermFrequency counts terms separately for each scored label and keeps the
// top n per label, most frequent first with ties broken alphabetically.
func TermFrequency(posts []models.AnalyzedPost, n int) map[models.Label][]models.TermCount {
	counts := make(map[models.Label]map[string]int, len(models.ScoredLabels))
	for _, label := range models.ScoredLabels {
		counts[label] = make(map[string]int)
	}

	for _, p := range posts {
		bucket, ok := counts[p.Label]
		if !ok {
			continue
		}
		text := p.CleanedText
		if text == "" {
			text = p.Text
		}
		for _, token := range Tokenize(text) {
			bucket[token]++
		}
	}

	out := make(map[models.Label][]models.TermCount, len(counts))
	for label, bucket := range counts {
		terms := make([]models.TermCount, 0, len(bucket))
		for term, count := range bucket {
			terms = append(terms, models.TermCount{Term: term, Count: count})
		}
		sort.Slice(terms, func(i, j int) bool {
			if terms[i].Count != terms[j].Count {
				return terms[i].Count > terms[j].Count
			}
			return terms[i].Term < terms[j].Term
		})
		if n >= 0 && len(terms) > n {
			terms = terms[:n]
		}
		out[label] = terms
	}
	return out
}
