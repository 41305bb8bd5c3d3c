package analysis

import "github.com/spacesedan/bluesense/internal/models"

// Labeler buckets scores: strictly above Positive is positive, strictly
// below Negative is negative, everything else neutral.
type Labeler struct {
	Positive float64
	Negative float64
}

func (l Labeler) Label(score float64) models.Label {
	switch {
	case score > l.Positive:
		return models.LabelPositive
	case score < l.Negative:
		return models.LabelNegative
	default:
		return models.LabelNeutral
	}
}
