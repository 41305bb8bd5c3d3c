package models

type Label string

const (
	LabelPositive Label = "positive"
	LabelNeutral  Label = "neutral"
	LabelNegative Label = "negative"
	LabelUnscored Label = "unscored"
)

// ScoredLabels is the display order of labels that carry a score.
var ScoredLabels = []Label{LabelPositive, LabelNeutral, LabelNegative}

type SentimentResult struct {
	PostID    string  `json:"post_id"`
	Score     float64 `json:"score"`
	Magnitude float64 `json:"magnitude"`
	Provider  string  `json:"provider"`
}

// LLMSentimentResponse is the JSON object the chat model backends are asked to return.
type LLMSentimentResponse struct {
	Score     *float64 `json:"score"`
	Magnitude *float64 `json:"magnitude"`
}

// NewSentimentResult clamps score into [-1, 1] and magnitude to >= 0.
func NewSentimentResult(score, magnitude float64, provider string) SentimentResult {
	switch {
	case score > 1:
		score = 1
	case score < -1:
		score = -1
	}
	if magnitude < 0 {
		magnitude = 0
	}
	return SentimentResult{Score: score, Magnitude: magnitude, Provider: provider}
}
