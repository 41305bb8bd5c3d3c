package analysis

import (
	"time"

	"github.com/spacesedan/bluesense/config"
	"github.com/spacesedan/bluesense/internal/models"
)

// ChooseGranularity resolves the bucket size. "auto" picks hourly buckets
// when the posts span less than a day and daily buckets otherwise.
func ChooseGranularity(posts []models.Post, policy string) models.Granularity {
	switch policy {
	case config.GRANULARITY_HOUR:
		return models.GranularityHour
	case config.GRANULARITY_DAY:
		return models.GranularityDay
	}

	if len(posts) == 0 {
		return models.GranularityHour
	}
	first, last := posts[0].CreatedAt, posts[0].CreatedAt
	for _, p := range posts[1:] {
		if p.CreatedAt.Before(first) {
			first = p.CreatedAt
		}
		if p.CreatedAt.After(last) {
			last = p.CreatedAt
		}
	}
	if last.Sub(first) < 24*time.Hour {
		return models.GranularityHour
	}
	return models.GranularityDay
}

// BucketStart truncates t to the start of its hour or day in loc.
func BucketStart(t time.Time, granularity models.Granularity, loc *time.Location) time.Time {
	t = t.In(loc)
	if granularity == models.GranularityDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	return t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
}

func nextBucket(start time.Time, granularity models.Granularity, loc *time.Location) time.Time {
	if granularity == models.GranularityDay {
		return time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
	}
	return start.Add(time.Hour)
}

// Timeline returns one bucket for every hour or day between the first and
// last post, including empty ones. Mean score covers scored posts only.
func Timeline(posts []models.AnalyzedPost, granularity models.Granularity, loc *time.Location) []models.TimeBucket {
	if len(posts) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	type acc struct {
		bucket models.TimeBucket
		sum    float64
	}
	byStart := make(map[int64]*acc)

	var first, last time.Time
	for i, p := range posts {
		start := BucketStart(p.CreatedAt, granularity, loc)
		if i == 0 || start.Before(first) {
			first = start
		}
		if i == 0 || start.After(last) {
			last = start
		}

		a, ok := byStart[start.Unix()]
		if !ok {
			a = &acc{bucket: models.TimeBucket{Start: start}}
			byStart[start.Unix()] = a
		}
		a.bucket.Count++
		if p.Sentiment == nil {
			continue
		}
		a.bucket.Scored++
		a.sum += p.Sentiment.Score
		switch p.Label {
		case models.LabelPositive:
			a.bucket.Positive++
		case models.LabelNeutral:
			a.bucket.Neutral++
		case models.LabelNegative:
			a.bucket.Negative++
		}
	}

	var timeline []models.TimeBucket
	for start := first; !start.After(last); start = nextBucket(start, granularity, loc) {
		a, ok := byStart[start.Unix()]
		if !ok {
			timeline = append(timeline, models.TimeBucket{Start: start})
			continue
		}
		if a.bucket.Scored > 0 {
			a.bucket.MeanScore = a.sum / float64(a.bucket.Scored)
		}
		timeline = append(timeline, a.bucket)
	}
	return timeline
}

// FitTrend fits score = slope*hours + intercept over scored posts, with
// hours measured from the earliest scored post. Nil below two points.
func FitTrend(posts []models.AnalyzedPost) *models.TrendLine {
	var scored []models.AnalyzedPost
	for _, p := range posts {
		if p.Sentiment != nil {
			scored = append(scored, p)
		}
	}
	if len(scored) < 2 {
		return nil
	}

	start, end := scored[0].CreatedAt, scored[0].CreatedAt
	for _, p := range scored[1:] {
		if p.CreatedAt.Before(start) {
			start = p.CreatedAt
		}
		if p.CreatedAt.After(end) {
			end = p.CreatedAt
		}
	}

	n := float64(len(scored))
	var sumX, sumY float64
	for _, p := range scored {
		sumX += p.CreatedAt.Sub(start).Hours()
		sumY += p.Sentiment.Score
	}
	meanX, meanY := sumX/n, sumY/n

	var covXY, varX float64
	for _, p := range scored {
		dx := p.CreatedAt.Sub(start).Hours() - meanX
		covXY += dx * (p.Sentiment.Score - meanY)
		varX += dx * dx
	}

	trend := &models.TrendLine{Intercept: meanY, Start: start, End: end}
	if varX > 0 {
		trend.Slope = covXY / varX
		trend.Intercept = meanY - trend.Slope*meanX
	}
	trend.StartScore = trend.Intercept
	trend.EndScore = trend.Intercept + trend.Slope*end.Sub(start).Hours()
	return trend
}
