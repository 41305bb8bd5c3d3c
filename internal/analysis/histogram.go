package analysis

import "github.com/spacesedan/bluesense/internal/models"

// Histogram splits [-1, 1] into equal bins and counts scored posts.
// A score of exactly 1 lands in the last bin.
func Histogram(posts []models.AnalyzedPost, bins int) []models.HistogramBin {
	if bins < 1 {
		bins = 1
	}

	width := 2.0 / float64(bins)
	out := make([]models.HistogramBin, bins)
	for i := range out {
		out[i].Lower = -1 + float64(i)*width
		out[i].Upper = -1 + float64(i+1)*width
	}
	out[bins-1].Upper = 1

	for _, p := range posts {
		if p.Sentiment == nil {
			continue
		}
		idx := int((p.Sentiment.Score + 1) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}
