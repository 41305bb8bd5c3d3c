package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/bluesense/internal/models"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("The VOTE is in!! Voters and the vote, 2024 ＶＯＴＥ")

	assert.Equal(t, []string{"vote", "voters", "vote", "vote"}, tokens)
}

func TestTermFrequencyPerLabel(t *testing.T) {
	posts := []models.AnalyzedPost{
		{Label: models.LabelPositive, CleanedText: "great turnout great energy"},
		{Label: models.LabelPositive, CleanedText: "great day"},
		{Label: models.LabelNegative, CleanedText: "long lines awful wait"},
		{Label: models.LabelUnscored, CleanedText: "ignored words entirely"},
		{Label: models.LabelNeutral, Post: models.Post{Text: "Polls close tonight."}},
	}

	terms := TermFrequency(posts, 2)

	require.Len(t, terms[models.LabelPositive], 2)
	assert.Equal(t, models.TermCount{Term: "great", Count: 3}, terms[models.LabelPositive][0])
	assert.Equal(t, models.TermCount{Term: "day", Count: 1}, terms[models.LabelPositive][1], "ties sorted alphabetically")

	assert.Equal(t, []models.TermCount{{Term: "awful", Count: 1}, {Term: "lines", Count: 1}}, terms[models.LabelNegative])
	assert.Equal(t, []models.TermCount{{Term: "close", Count: 1}, {Term: "polls", Count: 1}}, terms[models.LabelNeutral])

	_, hasUnscored := terms[models.LabelUnscored]
	assert.False(t, hasUnscored)
}
