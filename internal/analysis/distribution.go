package analysis

import "github.com/spacesedan/bluesense/internal/models"

// ComputeDistribution counts labels. Percentages are shares of scored
// posts only; with nothing scored the distribution is flagged NoData.
func ComputeDistribution(posts []models.AnalyzedPost) models.Distribution {
	var d models.Distribution
	d.Total = len(posts)

	for _, p := range posts {
		switch p.Label {
		case models.LabelPositive:
			d.Positive++
		case models.LabelNeutral:
			d.Neutral++
		case models.LabelNegative:
			d.Negative++
		default:
			d.Unscored++
		}
	}

	d.Scored = d.Positive + d.Neutral + d.Negative
	if d.Scored == 0 {
		d.NoData = true
		return d
	}

	total := float64(d.Scored)
	d.PositivePct = float64(d.Positive) * 100 / total
	d.NeutralPct = float64(d.Neutral) * 100 / total
	d.NegativePct = float64(d.Negative) * 100 / total
	return d
}
