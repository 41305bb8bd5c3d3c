package models

import "time"

type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

type AnalyzedPost struct {
	Post
	Sentiment   *SentimentResult `json:"sentiment,omitempty"`
	Label       Label            `json:"label"`
	TimeBucket  time.Time        `json:"time_bucket"`
	CleanedText string           `json:"cleaned_text"`
	ScoreError  string           `json:"score_error,omitempty"`
}

func (p AnalyzedPost) Scored() bool {
	return p.Sentiment != nil
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// AnalysisSet is the joined result of one query. It is built once and
// only read afterwards.
type AnalysisSet struct {
	RunID       string         `json:"run_id"`
	Topic       string         `json:"topic"`
	RetrievedAt time.Time      `json:"retrieved_at"`
	Limit       int            `json:"limit"`
	FetchMode   FetchMode      `json:"fetch_mode"`
	Provider    string         `json:"provider"`
	Degraded    bool           `json:"degraded"`
	Granularity Granularity    `json:"granularity"`
	Location    string         `json:"timezone"`
	Posts       []AnalyzedPost `json:"posts"`
	Skipped     SkipCounts     `json:"skipped"`
	Notices     []Notice       `json:"notices,omitempty"`
}

func (s *AnalysisSet) Empty() bool {
	return s == nil || len(s.Posts) == 0
}

func (s *AnalysisSet) UnscoredCount() int {
	n := 0
	for _, p := range s.Posts {
		if !p.Scored() {
			n++
		}
	}
	return n
}

type Distribution struct {
	Positive    int     `json:"positive"`
	Neutral     int     `json:"neutral"`
	Negative    int     `json:"negative"`
	PositivePct float64 `json:"positive_pct"`
	NeutralPct  float64 `json:"neutral_pct"`
	NegativePct float64 `json:"negative_pct"`
	Scored      int     `json:"scored"`
	Unscored    int     `json:"unscored"`
	Total       int     `json:"total"`
	NoData      bool    `json:"no_data"`
}

func (d Distribution) Count(label Label) int {
	switch label {
	case LabelPositive:
		return d.Positive
	case LabelNeutral:
		return d.Neutral
	case LabelNegative:
		return d.Negative
	default:
		return d.Unscored
	}
}

func (d Distribution) Percent(label Label) float64 {
	switch label {
	case LabelPositive:
		return d.PositivePct
	case LabelNeutral:
		return d.NeutralPct
	case LabelNegative:
		return d.NegativePct
	default:
		return 0
	}
}

type TimeBucket struct {
	Start     time.Time `json:"start"`
	Count     int       `json:"count"`
	Scored    int       `json:"scored"`
	Positive  int       `json:"positive"`
	Neutral   int       `json:"neutral"`
	Negative  int       `json:"negative"`
	MeanScore float64   `json:"mean_score"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// TrendLine is a least-squares fit of score against post time. Slope is
// in score units per hour.
type TrendLine struct {
	Slope      float64   `json:"slope"`
	Intercept  float64   `json:"intercept"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	StartScore float64   `json:"start_score"`
	EndScore   float64   `json:"end_score"`
}

type Aggregates struct {
	Distribution Distribution          `json:"distribution"`
	TopPositive  []AnalyzedPost        `json:"top_positive"`
	TopNegative  []AnalyzedPost        `json:"top_negative"`
	Timeline     []TimeBucket          `json:"timeline"`
	Trend        *TrendLine            `json:"trend,omitempty"`
	Terms        map[Label][]TermCount `json:"terms"`
	Histogram    []HistogramBin        `json:"histogram"`
}

// AnalysisReport is what GET /api/analysis returns.
type AnalysisReport struct {
	Analysis   *AnalysisSet `json:"analysis"`
	Aggregates Aggregates   `json:"aggregates"`
}
