package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/bluesense/config"
	"github.com/spacesedan/bluesense/internal/models"
)

func at(id string, ts time.Time, score *float64, label models.Label) models.AnalyzedPost {
	p := models.AnalyzedPost{Post: models.Post{ID: id, CreatedAt: ts}, Label: label}
	if score != nil {
		p.Sentiment = &models.SentimentResult{PostID: id, Score: *score}
	}
	return p
}

func ptr(f float64) *float64 { return &f }

func TestChooseGranularity(t *testing.T) {
	base := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	short := []models.Post{{CreatedAt: base}, {CreatedAt: base.Add(23 * time.Hour)}}
	long := []models.Post{{CreatedAt: base.Add(25 * time.Hour)}, {CreatedAt: base}}

	assert.Equal(t, models.GranularityHour, ChooseGranularity(short, config.GRANULARITY_AUTO))
	assert.Equal(t, models.GranularityDay, ChooseGranularity(long, config.GRANULARITY_AUTO))
	assert.Equal(t, models.GranularityDay, ChooseGranularity(short, config.GRANULARITY_DAY))
	assert.Equal(t, models.GranularityHour, ChooseGranularity(long, config.GRANULARITY_HOUR))
}

func TestTimelineHourlyFillsGaps(t *testing.T) {
	base := time.Date(2024, 11, 5, 9, 15, 0, 0, time.UTC)
	posts := []models.AnalyzedPost{
		at("a", base, ptr(0.5), models.LabelPositive),
		at("b", base.Add(10*time.Minute), ptr(-0.5), models.LabelNegative),
		at("c", base.Add(3*time.Hour), nil, models.LabelUnscored),
		at("d", base.Add(3*time.Hour+5*time.Minute), ptr(0.1), models.LabelNeutral),
	}

	timeline := Timeline(posts, models.GranularityHour, time.UTC)
	require.Len(t, timeline, 4, "09, 10, 11, 12")

	assert.Equal(t, time.Date(2024, 11, 5, 9, 0, 0, 0, time.UTC), timeline[0].Start)
	assert.Equal(t, 2, timeline[0].Count)
	assert.Equal(t, 1, timeline[0].Positive)
	assert.Equal(t, 1, timeline[0].Negative)
	assert.InDelta(t, 0, timeline[0].MeanScore, 1e-9)

	assert.Zero(t, timeline[1].Count)
	assert.Zero(t, timeline[2].Count)

	assert.Equal(t, 2, timeline[3].Count)
	assert.Equal(t, 1, timeline[3].Scored)
	assert.InDelta(t, 0.1, timeline[3].MeanScore, 1e-9, "unscored posts do not dilute the mean")

	for i := 1; i < len(timeline); i++ {
		assert.Equal(t, time.Hour, timeline[i].Start.Sub(timeline[i-1].Start))
	}
}

func TestTimelineDailyInTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00 UTC on the 6th is still the 5th in New York.
	posts := []models.AnalyzedPost{
		at("a", time.Date(2024, 11, 6, 3, 0, 0, 0, time.UTC), ptr(0.4), models.LabelPositive),
		at("b", time.Date(2024, 11, 8, 15, 0, 0, 0, time.UTC), ptr(-0.4), models.LabelNegative),
	}

	timeline := Timeline(posts, models.GranularityDay, loc)
	require.Len(t, timeline, 4, "5th, 6th, 7th and 8th")
	assert.Equal(t, 5, timeline[0].Start.Day())
	assert.Equal(t, 8, timeline[3].Start.Day())
	assert.Zero(t, timeline[1].Count)
}

func TestTimelineOutOfOrderPosts(t *testing.T) {
	base := time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)
	posts := []models.AnalyzedPost{
		at("late", base.Add(2*time.Hour), ptr(0.3), models.LabelPositive),
		at("early", base, ptr(0.3), models.LabelPositive),
	}

	timeline := Timeline(posts, models.GranularityHour, time.UTC)
	require.Len(t, timeline, 3)
	assert.Equal(t, base, timeline[0].Start)
}

func TestFitTrend(t *testing.T) {
	base := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	posts := []models.AnalyzedPost{
		at("a", base, ptr(-0.5), models.LabelNegative),
		at("b", base.Add(time.Hour), ptr(0), models.LabelNeutral),
		at("c", base.Add(2*time.Hour), ptr(0.5), models.LabelPositive),
		at("d", base.Add(time.Hour), nil, models.LabelUnscored),
	}

	trend := FitTrend(posts)
	require.NotNil(t, trend)
	assert.InDelta(t, 0.5, trend.Slope, 1e-9)
	assert.InDelta(t, -0.5, trend.StartScore, 1e-9)
	assert.InDelta(t, 0.5, trend.EndScore, 1e-9)

	assert.Nil(t, FitTrend(posts[:1]))
}
