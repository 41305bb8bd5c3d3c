package dashboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/spacesedan/bluesense/internal/analysis"
	"github.com/spacesedan/bluesense/internal/models"
)

var labelColors = map[models.Label]string{
	models.LabelPositive: "#2e9e5b",
	models.LabelNeutral:  "#9aa5b1",
	models.LabelNegative: "#d64545",
}

// echartsOption is marshalled verbatim into the page and handed to
// echarts.setOption by static/dashboard.js.
type echartsOption map[string]any

func buildCharts(set *models.AnalysisSet, agg models.Aggregates, opts analysis.Options, loc *time.Location) Charts {
	var charts Charts
	if !agg.Distribution.NoData {
		charts.Distribution = marshalOption("distribution", distributionOption(agg.Distribution))
		charts.Histogram = marshalOption("histogram", histogramOption(agg.Histogram))
		charts.Scatter = marshalOption("scatter", scatterOption(set.Posts, opts))
	}
	if len(agg.Timeline) > 0 {
		charts.Timeline = marshalOption("timeline", timelineOption(agg.Timeline, agg.Trend, set.Granularity, loc))
	}
	return charts
}

func marshalOption(name string, opt echartsOption) string {
	data, err := json.Marshal(opt)
	if err != nil {
		slog.Error("[Dashboard] Failed to encode chart", slog.String("chart", name), slog.String("error", err.Error()))
		return ""
	}
	return string(data)
}

func distributionOption(d models.Distribution) echartsOption {
	data := make([]map[string]any, 0, len(models.ScoredLabels))
	for _, label := range models.ScoredLabels {
		data = append(data, map[string]any{
			"name":      labelTitles[label],
			"value":     d.Count(label),
			"itemStyle": map[string]any{"color": labelColors[label]},
		})
	}

	return echartsOption{
		"tooltip": map[string]any{"trigger": "item", "formatter": "{b}: {c} ({d}%)"},
		"legend":  map[string]any{"bottom": 0},
		"series": []map[string]any{{
			"name":   "Sentiment",
			"type":   "pie",
			"radius": []string{"40%", "70%"},
			"label":  map[string]any{"formatter": "{b}\n{d}%"},
			"data":   data,
		}},
	}
}

func histogramOption(bins []models.HistogramBin) echartsOption {
	labels := make([]string, len(bins))
	counts := make([]int, len(bins))
	for i, b := range bins {
		labels[i] = fmt.Sprintf("%.1f to %.1f", b.Lower, b.Upper)
		counts[i] = b.Count
	}

	return echartsOption{
		"tooltip": map[string]any{"trigger": "axis"},
		"xAxis": map[string]any{
			"type":      "category",
			"data":      labels,
			"name":      "Sentiment score",
			"axisLabel": map[string]any{"rotate": 45},
		},
		"yAxis": map[string]any{"type": "value", "name": "Posts", "minInterval": 1},
		"series": []map[string]any{{
			"name":      "Posts",
			"type":      "bar",
			"barWidth":  "95%",
			"data":      counts,
			"itemStyle": map[string]any{"color": "#5b9bd5"},
		}},
	}
}

func timelineOption(buckets []models.TimeBucket, trend *models.TrendLine, granularity models.Granularity, loc *time.Location) echartsOption {
	layout := "Jan 2"
	if granularity == models.GranularityHour {
		layout = "Jan 2 15:04"
	}

	labels := make([]string, len(buckets))
	volume := make([]int, len(buckets))
	mean := make([]any, len(buckets))
	for i, b := range buckets {
		labels[i] = b.Start.In(loc).Format(layout)
		volume[i] = b.Count
		if b.Scored > 0 {
			mean[i] = round2(b.MeanScore)
		} else {
			mean[i] = nil
		}
	}

	series := []map[string]any{
		{
			"name":       "Posts",
			"type":       "bar",
			"yAxisIndex": 1,
			"data":       volume,
			"itemStyle":  map[string]any{"color": "#c9d6e8"},
		},
		{
			"name":         "Mean score",
			"type":         "line",
			"yAxisIndex":   0,
			"connectNulls": true,
			"data":         mean,
			"itemStyle":    map[string]any{"color": "#0085ff"},
		},
	}

	if trend != nil {
		points := make([]float64, len(buckets))
		for i, b := range buckets {
			hours := b.Start.Sub(trend.Start).Hours()
			points[i] = round2(clamp(trend.Intercept+trend.Slope*hours, -1, 1))
		}
		series = append(series, map[string]any{
			"name":       "Trend",
			"type":       "line",
			"yAxisIndex": 0,
			"symbol":     "none",
			"data":       points,
			"lineStyle":  map[string]any{"type": "dashed", "color": "#e07b00"},
		})
	}

	return echartsOption{
		"tooltip": map[string]any{"trigger": "axis"},
		"legend":  map[string]any{"bottom": 0},
		"xAxis":   map[string]any{"type": "category", "data": labels},
		"yAxis": []map[string]any{
			{"type": "value", "name": "Score", "min": -1, "max": 1},
			{"type": "value", "name": "Posts", "minInterval": 1},
		},
		"series": series,
	}
}

func scatterOption(posts []models.AnalyzedPost, opts analysis.Options) echartsOption {
	points := make(map[models.Label][][2]float64, len(models.ScoredLabels))
	for _, p := range posts {
		if p.Sentiment == nil {
			continue
		}
		points[p.Label] = append(points[p.Label], [2]float64{round2(p.Sentiment.Score), round2(p.Sentiment.Magnitude)})
	}

	series := make([]map[string]any, 0, len(models.ScoredLabels))
	for i, label := range models.ScoredLabels {
		s := map[string]any{
			"name":       labelTitles[label],
			"type":       "scatter",
			"symbolSize": 8,
			"data":       nonNil(points[label]),
			"itemStyle":  map[string]any{"color": labelColors[label]},
		}
		if i == 0 {
			s["markLine"] = map[string]any{
				"silent":    true,
				"symbol":    "none",
				"lineStyle": map[string]any{"type": "dashed", "color": "#888"},
				"data": []map[string]any{
					{"xAxis": opts.NegativeThreshold},
					{"xAxis": opts.PositiveThreshold},
				},
			}
		}
		series = append(series, s)
	}

	return echartsOption{
		"tooltip": map[string]any{"trigger": "item"},
		"legend":  map[string]any{"bottom": 0},
		"xAxis":   map[string]any{"type": "value", "name": "Score", "min": -1, "max": 1},
		"yAxis":   map[string]any{"type": "value", "name": "Magnitude", "min": 0},
		"series":  series,
	}
}

func nonNil(points [][2]float64) [][2]float64 {
	if points == nil {
		return [][2]float64{}
	}
	return points
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
