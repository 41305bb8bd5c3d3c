package analysis

import (
	"sort"

	"github.com/spacesedan/bluesense/internal/models"
)

// TopPositive returns up to k positive posts, highest score first. Ties
// keep fetch order.
func TopPositive(posts []models.AnalyzedPost, k int) []models.AnalyzedPost {
	return topByLabel(posts, models.LabelPositive, k, func(a, b float64) bool { return a > b })
}

// TopNegative returns up to k negative posts, lowest score first. Ties
// keep fetch order.
func TopNegative(posts []models.AnalyzedPost, k int) []models.AnalyzedPost {
	return topByLabel(posts, models.LabelNegative, k, func(a, b float64) bool { return a < b })
}

func topByLabel(posts []models.AnalyzedPost, label models.Label, k int, before func(a, b float64) bool) []models.AnalyzedPost {
	matched := make([]models.AnalyzedPost, 0, len(posts))
	for _, p := range posts {
		if p.Label == label && p.Sentiment != nil {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return before(matched[i].Sentiment.Score, matched[j].Sentiment.Score)
	})

	if k >= 0 && len(matched) > k {
		matched = matched[:k]
	}
	return matched
}
