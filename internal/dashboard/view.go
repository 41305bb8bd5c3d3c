package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/spacesedan/bluesense/internal/analysis"
	"github.com/spacesedan/bluesense/internal/models"
)

const (
	TIME_FORMAT       = "Jan 2, 2006 15:04 MST"
	UNSCORED_MARK     = "n/a"
	EXCERPT_MAX_RUNES = 280
)

var labelTitles = map[models.Label]string{
	models.LabelPositive: "Positive",
	models.LabelNeutral:  "Neutral",
	models.LabelNegative: "Negative",
	models.LabelUnscored: "Unscored",
}

// View is everything the dashboard page shows for one AnalysisSet.
type View struct {
	RunID       string
	Topic       string
	RetrievedAt string
	Timezone    string
	Empty       bool

	FetchMode models.FetchMode
	Provider  string
	Degraded  bool
	Notices   []models.Notice

	Distribution models.Distribution
	Shares       []Share
	TopPositive  []PostCard
	TopNegative  []PostCard
	Terms        []TermGroup
	Rows         []Row
	BucketTitle  string

	Charts Charts
}

type Share struct {
	Label   models.Label
	Title   string
	Count   int
	Percent string
}

type PostCard struct {
	Author string
	Handle string
	Text   string
	URL    string
	Score  string
	When   string
}

type TermGroup struct {
	Label models.Label
	Title string
	Terms []TermBar
}

type TermBar struct {
	Term  string
	Count int
	Width int
}

type Row struct {
	Author    string
	Handle    string
	Text      string
	URL       string
	When      string
	Label     models.Label
	Score     string
	Magnitude string
	Reason    string
	Likes     int
	Reposts   int
	Replies   int
}

// Charts holds serialized ECharts options, empty when a chart has no data.
type Charts struct {
	Distribution string
	Histogram    string
	Timeline     string
	Scatter      string
}

// BuildView derives the page model. set is only read.
func BuildView(set *models.AnalysisSet, opts analysis.Options) View {
	if set == nil {
		set = &models.AnalysisSet{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	view := View{
		RunID:       set.RunID,
		Topic:       set.Topic,
		RetrievedAt: formatTime(set.RetrievedAt, loc),
		Timezone:    loc.String(),
		Empty:       set.Empty(),
		FetchMode:   set.FetchMode,
		Provider:    set.Provider,
		Degraded:    set.Degraded,
		Notices:     set.Notices,
		BucketTitle: "hourly",
	}
	if set.Granularity == models.GranularityDay {
		view.BucketTitle = "daily"
	}
	if view.Empty {
		return view
	}

	agg := analysis.Summarize(set, opts)
	view.Distribution = agg.Distribution

	for _, label := range models.ScoredLabels {
		view.Shares = append(view.Shares, Share{
			Label:   label,
			Title:   labelTitles[label],
			Count:   agg.Distribution.Count(label),
			Percent: fmt.Sprintf("%.1f%%", agg.Distribution.Percent(label)),
		})
	}

	view.TopPositive = postCards(agg.TopPositive, loc)
	view.TopNegative = postCards(agg.TopNegative, loc)

	for _, label := range models.ScoredLabels {
		view.Terms = append(view.Terms, termGroup(label, agg.Terms[label]))
	}

	view.Rows = make([]Row, 0, len(set.Posts))
	for _, p := range set.Posts {
		view.Rows = append(view.Rows, row(p, loc))
	}

	view.Charts = buildCharts(set, agg, opts, loc)
	return view
}

func postCards(posts []models.AnalyzedPost, loc *time.Location) []PostCard {
	cards := make([]PostCard, 0, len(posts))
	for _, p := range posts {
		cards = append(cards, PostCard{
			Author: authorName(p.Post),
			Handle: p.AuthorHandle,
			Text:   excerpt(p.Text),
			URL:    p.URL,
			Score:  formatScore(p.Sentiment),
			When:   formatTime(p.CreatedAt, loc),
		})
	}
	return cards
}

func termGroup(label models.Label, terms []models.TermCount) TermGroup {
	group := TermGroup{Label: label, Title: labelTitles[label]}
	if len(terms) == 0 {
		return group
	}
	top := terms[0].Count
	for _, t := range terms {
		group.Terms = append(group.Terms, TermBar{
			Term:  t.Term,
			Count: t.Count,
			Width: t.Count * 100 / top,
		})
	}
	return group
}

func row(p models.AnalyzedPost, loc *time.Location) Row {
	r := Row{
		Author:    authorName(p.Post),
		Handle:    p.AuthorHandle,
		Text:      p.Text,
		URL:       p.URL,
		When:      formatTime(p.CreatedAt, loc),
		Label:     p.Label,
		Score:     formatScore(p.Sentiment),
		Magnitude: UNSCORED_MARK,
		Likes:     p.LikeCount,
		Reposts:   p.RepostCount,
		Replies:   p.ReplyCount,
	}
	if p.Sentiment != nil {
		r.Magnitude = fmt.Sprintf("%.2f", p.Sentiment.Magnitude)
	} else {
		r.Reason = strings.ReplaceAll(p.ScoreError, "_", " ")
	}
	return r
}

func authorName(p models.Post) string {
	if p.Author != "" {
		return p.Author
	}
	if p.AuthorHandle != "" {
		return p.AuthorHandle
	}
	return "Unknown"
}

func formatScore(s *models.SentimentResult) string {
	if s == nil {
		return UNSCORED_MARK
	}
	return fmt.Sprintf("%+.2f", s.Score)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(TIME_FORMAT)
}

func excerpt(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= EXCERPT_MAX_RUNES {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:EXCERPT_MAX_RUNES])) + "…"
}
